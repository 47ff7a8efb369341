package files

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/basit/shifter/models"
	"github.com/basit/shifter/storage"
)

// gatedReader blocks its first Read until release is closed.
type gatedReader struct {
	r       io.Reader
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedReader(content string) *gatedReader {
	return &gatedReader{
		r:       strings.NewReader(content),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedReader) Read(p []byte) (int, error) {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return g.r.Read(p)
}

func (s *StoreSuite) TestConcurrentSweepsShareTheWork() {
	const total = 20
	for i := 0; i < total; i++ {
		s.upload(s.owner, "a.txt", "data", s.in(time.Minute))
	}
	s.now = s.now.Add(time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
		errs    []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.store.SweepExpired(s.ctx)
			mu.Lock()
			defer mu.Unlock()
			removed += n
			if err != nil {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	s.Empty(errs)
	s.Equal(total, removed)
	s.Zero(s.fileCount())
	s.Empty(s.blobEntries())
}

func (s *StoreSuite) TestSweepRunsWhileUploadStreams() {
	expired := s.upload(s.owner, "old.txt", "old", s.in(time.Minute))
	live := s.upload(s.owner, "live.txt", "live", s.in(2*time.Hour))
	s.now = s.now.Add(time.Hour)

	reader := newGatedReader("streaming content")
	type result struct {
		file *models.File
		err  error
	}
	done := make(chan result, 1)
	go func() {
		file, err := s.store.Create(s.ctx, CreateRequest{
			Owner:           s.owner,
			DisplayName:     "slow.bin",
			Content:         reader,
			RequestedExpiry: s.in(time.Hour),
			EnableExpiry:    true,
		})
		done <- result{file, err}
	}()

	select {
	case <-reader.started:
	case <-time.After(5 * time.Second):
		s.FailNow("upload never started reading")
	}

	ctx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
	defer cancel()
	n, err := s.store.SweepExpired(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	_, err = s.store.GetByToken(s.ctx, expired.PublicToken, nil)
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.ForceExpire(ctx, live.PublicToken, s.owner)
	s.Require().NoError(err)

	close(reader.release)
	res := <-done
	s.Require().NoError(res.err)
	s.Equal(md5Hex("streaming content"), *res.file.ContentHash)

	got, err := s.store.GetByToken(s.ctx, res.file.PublicToken, &s.owner)
	s.Require().NoError(err)
	s.Equal(int64(len("streaming content")), got.Size)
}

// racingBlob inserts a row with the upload's token while the content is
// being stored, as a concurrent upload drawing the same token would.
type racingBlob struct {
	storage.Blob
	onPut func(token string)
	puts  int
}

func (r *racingBlob) Put(ctx context.Context, name string, rd io.Reader) (string, int64, error) {
	r.puts++
	r.onPut(strings.SplitN(name, "/", 2)[0])
	return r.Blob.Put(ctx, name, rd)
}

func (s *StoreSuite) TestTokenTakenDuringUploadKeepsContent() {
	first, second := strings.Repeat("cd", 16), strings.Repeat("ef", 16)
	tokens := []string{first, second}
	calls := 0

	blobs := &racingBlob{Blob: s.blobs, onPut: func(token string) {
		s.Require().NoError(s.db.Create(&models.File{
			PublicToken: token,
			OwnerID:     &s.owner,
			DisplayName: "other.txt",
			UploadedAt:  s.now,
			BlobRef:     token + "/other.txt",
		}).Error)
	}}
	store := s.newStore(blobs, WithTokenFunc(func() (string, error) {
		token := tokens[calls]
		calls++
		return token, nil
	}))

	file, err := store.Create(s.ctx, CreateRequest{
		Owner:           s.owner,
		DisplayName:     "a.txt",
		Content:         strings.NewReader("data"),
		RequestedExpiry: s.in(time.Hour),
		EnableExpiry:    true,
	})
	s.Require().NoError(err)
	s.Equal(1, blobs.puts, "content is streamed once")
	s.Equal(second, file.PublicToken)
	s.Equal(first+"/a.txt", file.BlobRef)

	rc, err := s.blobs.Open(s.ctx, file.BlobRef)
	s.Require().NoError(err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Equal("data", string(body))
}
