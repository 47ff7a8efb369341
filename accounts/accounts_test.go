package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/basit/shifter/files"
	"github.com/basit/shifter/internal/testutil"
	"github.com/basit/shifter/models"
	"github.com/basit/shifter/settings"
	"github.com/basit/shifter/storage"
)

type AccountsSuite struct {
	suite.Suite
	ctx   context.Context
	db    *gorm.DB
	store *files.Store
	svc   *Service
}

func (s *AccountsSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewDatabase(s.T())
	blobs, err := storage.NewLocal(s.T().TempDir())
	s.Require().NoError(err)
	s.store = files.NewStore(s.db, blobs, files.NewExpiryPolicy(settings.NewResolver(s.db)))
	s.svc = NewService(s.db, s.store)
	s.svc.OnDelete(func(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
		_, err := s.store.WithDB(tx).ExpireAllForOwner(ctx, id)
		return err
	})
}

func TestAccountsSuite(t *testing.T) {
	suite.Run(t, new(AccountsSuite))
}

func (s *AccountsSuite) create(email string, staff bool) *models.User {
	u, err := s.svc.Create(s.ctx, CreateParams{Email: email, Password: "correct horse", IsStaff: staff})
	s.Require().NoError(err)
	return u
}

func (s *AccountsSuite) TestCreateAndAuthenticate() {
	u := s.create("Alice@Example.com", false)
	s.Equal("alice@example.com", u.Email)
	s.NotEqual("correct horse", u.PasswordHash)

	_, err := s.svc.Create(s.ctx, CreateParams{Email: "alice@example.com", Password: "another password"})
	s.ErrorIs(err, ErrEmailTaken)

	_, err = s.svc.Create(s.ctx, CreateParams{Email: "not an email", Password: "another password"})
	s.ErrorIs(err, ErrInvalidEmail)

	_, err = s.svc.Create(s.ctx, CreateParams{Email: "bob@example.com", Password: "short"})
	s.ErrorIs(err, ErrPasswordTooShort)

	got, err := s.svc.Authenticate(s.ctx, "ALICE@example.com", "correct horse")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)
	s.NotNil(got.LastLogin)

	_, err = s.svc.Authenticate(s.ctx, "alice@example.com", "wrong")
	s.ErrorIs(err, ErrInvalidCredentials)
	_, err = s.svc.Authenticate(s.ctx, "nobody@example.com", "correct horse")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *AccountsSuite) TestDeleteExpiresFilesAndKeepsRecords() {
	staff := s.create("staff@example.com", true)
	user := s.create("user@example.com", false)

	expiry := time.Now().Add(time.Hour)
	file, err := s.store.Create(s.ctx, files.CreateRequest{
		Owner:           user.ID,
		DisplayName:     "a.txt",
		Content:         strings.NewReader("data"),
		RequestedExpiry: &expiry,
		EnableExpiry:    true,
	})
	s.Require().NoError(err)

	s.ErrorIs(s.svc.Delete(s.ctx, staff.ID, staff.ID), ErrSelfDelete)
	s.Require().NoError(s.svc.Delete(s.ctx, user.ID, staff.ID))
	s.ErrorIs(s.svc.Delete(s.ctx, user.ID, staff.ID), ErrNotFound)

	var kept models.File
	s.Require().NoError(s.db.Take(&kept, "id = ?", file.ID).Error)
	s.Nil(kept.OwnerID)
	s.Require().NotNil(kept.ExpiresAt)
	s.False(kept.ExpiresAt.After(time.Now()))

	_, err = s.store.GetByToken(s.ctx, file.PublicToken, nil)
	s.ErrorIs(err, files.ErrNotFound)
}

func (s *AccountsSuite) TestListCountsActiveFiles() {
	a := s.create("a@example.com", false)
	s.create("b@example.com", false)

	expiry := time.Now().Add(time.Hour)
	_, err := s.store.Create(s.ctx, files.CreateRequest{
		Owner:           a.ID,
		DisplayName:     "a.txt",
		Content:         strings.NewReader("data"),
		RequestedExpiry: &expiry,
		EnableExpiry:    true,
	})
	s.Require().NoError(err)

	list, err := s.svc.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("a@example.com", list[0].Email)
	s.Equal(int64(1), list[0].ActiveFiles)
	s.Equal(int64(0), list[1].ActiveFiles)
}

func (s *AccountsSuite) TestPasswordResetAndChange() {
	u := s.create("user@example.com", false)

	s.Require().NoError(s.svc.ResetPassword(s.ctx, u.ID, "temporary pass"))
	got, err := s.svc.Authenticate(s.ctx, "user@example.com", "temporary pass")
	s.Require().NoError(err)
	s.True(got.ChangePasswordOnLogin)

	s.ErrorIs(s.svc.ChangePassword(s.ctx, u.ID, "wrong", "brand new pass"), ErrInvalidCredentials)
	s.Require().NoError(s.svc.ChangePassword(s.ctx, u.ID, "temporary pass", "brand new pass"))

	got, err = s.svc.Authenticate(s.ctx, "user@example.com", "brand new pass")
	s.Require().NoError(err)
	s.False(got.ChangePasswordOnLogin)

	s.ErrorIs(s.svc.ResetPassword(s.ctx, uuid.New(), "whatever pass"), ErrNotFound)
}

func (s *AccountsSuite) TestSetupOnlyOnce() {
	required, err := s.svc.SetupRequired(s.ctx)
	s.Require().NoError(err)
	s.True(required)

	admin, err := s.svc.Setup(s.ctx, "admin@example.com", "first password")
	s.Require().NoError(err)
	s.True(admin.IsStaff)

	_, err = s.svc.Setup(s.ctx, "again@example.com", "second password")
	s.ErrorIs(err, ErrAlreadySetUp)
}

func (s *AccountsSuite) TestFailedDeleteKeepsUserAndFiles() {
	staff := s.create("staff@example.com", true)
	user := s.create("user@example.com", false)

	expiry := time.Now().Add(time.Hour)
	file, err := s.store.Create(s.ctx, files.CreateRequest{
		Owner:           user.ID,
		DisplayName:     "a.txt",
		Content:         strings.NewReader("data"),
		RequestedExpiry: &expiry,
		EnableExpiry:    true,
	})
	s.Require().NoError(err)

	boom := errors.New("audit log unavailable")
	s.svc.OnDelete(func(context.Context, *gorm.DB, uuid.UUID) error {
		return boom
	})

	s.ErrorIs(s.svc.Delete(s.ctx, user.ID, staff.ID), boom)

	_, err = s.svc.Get(s.ctx, user.ID)
	s.Require().NoError(err)
	got, err := s.store.GetByToken(s.ctx, file.PublicToken, &user.ID)
	s.Require().NoError(err, "files expired by the first hook are restored")
	s.True(got.ExpiresAt.Equal(expiry.UTC().Truncate(time.Microsecond)))
}
