package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basit/shifter/logging"
	"github.com/basit/shifter/models"
	"github.com/basit/shifter/storage"
)

const maxTokenAttempts = 5

const (
	liveClause    = "(expires_at IS NULL OR expires_at > ?)"
	expiredClause = "expires_at IS NOT NULL AND expires_at <= ?"
)

type StoreOption func(*Store)

// WithClock replaces time.Now as the store's notion of the current time.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.clock = now
	}
}

func WithTokenFunc(fn func() (string, error)) StoreOption {
	return func(s *Store) {
		s.newToken = fn
	}
}

// Store owns file records and the blobs they point at.
type Store struct {
	db       *gorm.DB
	blobs    storage.Blob
	policy   *ExpiryPolicy
	clock    func() time.Time
	newToken func() (string, error)
}

func NewStore(db *gorm.DB, blobs storage.Blob, policy *ExpiryPolicy, opts ...StoreOption) *Store {
	s := &Store{
		db:       db,
		blobs:    blobs,
		policy:   policy,
		clock:    time.Now,
		newToken: NewToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithDB returns a copy of the store that runs its queries on db, typically
// a transaction owned by the caller.
func (s *Store) WithDB(db *gorm.DB) *Store {
	c := *s
	c.db = db
	return &c
}

// Now is the store's clock in UTC at the precision the database keeps.
func (s *Store) Now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

func (s *Store) Policy() *ExpiryPolicy {
	return s.policy
}

type CreateRequest struct {
	Owner           uuid.UUID
	DisplayName     string
	Content         io.Reader
	ContentType     string
	RequestedExpiry *time.Time
	EnableExpiry    bool
}

// Create validates the requested expiry, stores the content under a name
// derived from a fresh token and records it. Nothing is written when the
// expiry is rejected. The content is stored before the row exists and no
// transaction is held while it streams; if the row cannot be written the
// blob is removed again.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*models.File, error) {
	lg := logging.FromContext(ctx)
	now := s.Now()
	expiresAt, err := s.policy.Validate(ctx, req.RequestedExpiry, req.EnableExpiry, now)
	if err != nil {
		return nil, err
	}
	if expiresAt != nil {
		t := expiresAt.UTC().Truncate(time.Microsecond)
		expiresAt = &t
	}

	var content *storedContent
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			s.discard(ctx, content)
			return nil, err
		}

		if content == nil {
			taken, err := s.tokenTaken(ctx, token)
			if err != nil {
				return nil, err
			}
			if taken {
				lg.Warn("file token collision, retrying", zap.Int("attempt", attempt))
				continue
			}
			content, err = s.putContent(ctx, token, req)
			if err != nil {
				return nil, err
			}
		}

		owner := req.Owner
		hash := content.hash
		file := &models.File{
			PublicToken: token,
			OwnerID:     &owner,
			DisplayName: req.DisplayName,
			Size:        content.size,
			ContentType: req.ContentType,
			UploadedAt:  now,
			ExpiresAt:   expiresAt,
			ContentHash: &hash,
			BlobRef:     content.ref,
		}
		err = s.db.WithContext(ctx).Create(file).Error
		if isDuplicateKey(err) {
			// the stored blob stays valid under its ref, only the row needs a new token
			lg.Warn("file token taken while uploading, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.discard(ctx, content)
			return nil, fmt.Errorf("failed to record file: %w", err)
		}
		return file, nil
	}
	s.discard(ctx, content)
	return nil, ErrTokenExhausted
}

type storedContent struct {
	ref  string
	size int64
	hash string
}

func (s *Store) tokenTaken(ctx context.Context, token string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.File{}).Where("public_token = ?", token).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check file token: %w", err)
	}
	return n > 0, nil
}

func (s *Store) putContent(ctx context.Context, token string, req CreateRequest) (*storedContent, error) {
	hasher := NewContentHasher()
	ref, n, err := s.blobs.Put(ctx, token+"/"+sanitizeName(req.DisplayName), io.TeeReader(req.Content, hasher))
	if err != nil {
		return nil, fmt.Errorf("failed to store file content: %w", err)
	}
	return &storedContent{ref: ref, size: n, hash: hasher.Sum()}, nil
}

// discard removes the blob of an upload that was not recorded.
func (s *Store) discard(ctx context.Context, content *storedContent) {
	if content == nil {
		return
	}
	if err := s.blobs.Delete(ctx, content.ref); err != nil {
		logging.FromContext(ctx).Error("failed to remove blob of unrecorded upload",
			zap.String("ref", content.ref), zap.Error(err))
	}
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// sanitizeName keeps the base name of a client supplied filename and
// replaces anything that is unsafe in a storage key.
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.TrimLeft(name, ".")
	if len(name) > 200 {
		name = name[len(name)-200:]
	}
	if name == "" {
		return "file"
	}
	return name
}

func (s *Store) visible(tx *gorm.DB, token string, owner *uuid.UUID, now time.Time) *gorm.DB {
	q := tx.Where("public_token = ?", token).Where(liveClause, now)
	if owner != nil {
		q = q.Where("owner_id = ?", *owner)
	}
	return q
}

// GetByToken returns a live file. A nil owner is a public lookup; otherwise
// the file must belong to owner.
func (s *Store) GetByToken(ctx context.Context, token string, owner *uuid.UUID) (*models.File, error) {
	var file models.File
	err := s.visible(s.db.WithContext(ctx), token, owner, s.Now()).Take(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	return &file, nil
}

// ListNonExpired returns the owner's live files, oldest upload first.
func (s *Store) ListNonExpired(ctx context.Context, owner uuid.UUID) ([]models.File, error) {
	files := []models.File{}
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		Where(liveClause, s.Now()).
		Order("uploaded_at ASC").Order("id ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// CountActive counts live files of owner, or of every user when owner is nil.
func (s *Store) CountActive(ctx context.Context, owner *uuid.UUID) (int64, error) {
	return s.count(ctx, owner, liveClause)
}

// CountExpired counts files waiting for the sweep.
func (s *Store) CountExpired(ctx context.Context, owner *uuid.UUID) (int64, error) {
	return s.count(ctx, owner, expiredClause)
}

func (s *Store) count(ctx context.Context, owner *uuid.UUID, clause string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.File{}).Where(clause, s.Now())
	if owner != nil {
		q = q.Where("owner_id = ?", *owner)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

// ForceExpire moves the owner's file to expired as of now. The blob stays
// until the next sweep.
func (s *Store) ForceExpire(ctx context.Context, token string, owner uuid.UUID) (*models.File, error) {
	now := s.Now()
	var file models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.visible(tx, token, &owner, now).Take(&file).Error; err != nil {
			return err
		}
		res := s.visible(tx.Model(&models.File{}), token, &owner, now).
			Where("id = ?", file.ID).
			Update("expires_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to expire file: %w", err)
	}
	file.ExpiresAt = &now
	return &file, nil
}

// ExpireAllForOwner force-expires every live file of owner. Files that
// already expired keep their earlier expiry.
func (s *Store) ExpireAllForOwner(ctx context.Context, owner uuid.UUID) (int64, error) {
	now := s.Now()
	res := s.db.WithContext(ctx).Model(&models.File{}).
		Where("owner_id = ?", owner).
		Where(liveClause, now).
		Update("expires_at", now)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire files of owner %s: %w", owner, res.Error)
	}
	return res.RowsAffected, nil
}

// SweepExpired permanently removes every expired file. Each row is deleted
// before its blob, so an interrupted sweep can leave an orphaned blob but
// never a record without content. A row another sweep already removed is
// skipped. The count is the number of rows this call deleted; blob
// failures are joined into the error without reducing it.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	now := s.Now()
	lg := logging.FromContext(ctx)

	var (
		expired []models.File
		removed int
		errs    []error
	)
	res := s.db.WithContext(ctx).Where(expiredClause, now).FindInBatches(&expired, 100, func(tx *gorm.DB, batch int) error {
		for _, file := range expired {
			del := s.db.WithContext(ctx).
				Where("id = ?", file.ID).
				Where(expiredClause, now).
				Delete(&models.File{})
			if del.Error != nil {
				errs = append(errs, fmt.Errorf("failed to delete file %s: %w", file.PublicToken, del.Error))
				continue
			}
			if del.RowsAffected == 0 {
				continue
			}
			removed++

			if err := s.blobs.Delete(ctx, file.BlobRef); err != nil {
				lg.Error("failed to delete blob of expired file",
					zap.String("token", file.PublicToken), zap.String("ref", file.BlobRef), zap.Error(err))
				errs = append(errs, err)
			}
		}
		return nil
	})
	if res.Error != nil {
		errs = append(errs, fmt.Errorf("failed to query expired files: %w", res.Error))
	}
	return removed, errors.Join(errs...)
}
