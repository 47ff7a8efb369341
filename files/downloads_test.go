package files

import (
	"time"

	"github.com/basit/shifter/models"
)

func (s *StoreSuite) TestDownloadHistorySurvivesUntilSweep() {
	file := s.upload(s.owner, "a.txt", "data", s.in(time.Hour))

	s.Require().NoError(s.store.RecordDownload(s.ctx, file, Download{IPAddress: "10.0.0.1", UserAgent: "curl"}))
	s.Require().NoError(s.store.RecordDownload(s.ctx, file, Download{IPAddress: "10.0.0.2", User: &s.owner}))

	n, err := s.store.DownloadCount(s.ctx, file)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	_, err = s.store.ExpireAllForOwner(s.ctx, s.owner)
	s.Require().NoError(err)
	n, err = s.store.DownloadCount(s.ctx, file)
	s.Require().NoError(err)
	s.Equal(int64(2), n, "expiring a file keeps its history")

	removed, err := s.store.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, removed)

	var events int64
	s.Require().NoError(s.db.Model(&models.DownloadEvent{}).Count(&events).Error)
	s.Zero(events)
}
