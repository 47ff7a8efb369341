package files

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basit/shifter/settings"
)

type staticSettings map[string]string

func (s staticSettings) String(_ context.Context, key string) (string, error) {
	return s[key], nil
}

func (s staticSettings) Bool(_ context.Context, key string) (bool, error) {
	v := s[key]
	return v == "true" || v == "1", nil
}

func newPolicy(maxOffset string, allowOptional bool) *ExpiryPolicy {
	optional := "false"
	if allowOptional {
		optional = "true"
	}
	return NewExpiryPolicy(staticSettings{
		settings.DefaultExpiryOffset: "24",
		settings.MaxExpiryOffset:     maxOffset,
		settings.AllowOptionalExpiry: optional,
	})
}

func ptr(t time.Time) *time.Time {
	return &t
}

func requireCode(t *testing.T, err error, code string) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, code, verr.Code)
	return verr
}

func TestValidateBoundaries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newPolicy("336", false)
	maxAllowed := now.Add(336 * time.Hour)

	_, err := p.Validate(ctx, ptr(now.Add(-time.Second)), true, now)
	verr := requireCode(t, err, CodeExpiryPast)
	assert.Equal(t, "You can't upload a file with an expiry time in the past.", verr.Message)

	got, err := p.Validate(ctx, ptr(now), true, now)
	require.NoError(t, err)
	assert.True(t, got.Equal(now))

	got, err = p.Validate(ctx, ptr(maxAllowed), true, now)
	require.NoError(t, err)
	assert.True(t, got.Equal(maxAllowed))

	_, err = p.Validate(ctx, ptr(maxAllowed.Add(time.Second)), true, now)
	verr = requireCode(t, err, CodeExpiryTooFar)
	assert.Equal(t, int64(336), verr.MaxOffsetHours)
	assert.Equal(t, "You can't upload a file with an expiry time more than 336 hours in the future.", verr.Message)
}

func TestValidateOverflowSkipsUpperBound(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	farFuture := time.Date(9999, 12, 31, 23, 59, 0, 0, time.UTC)

	for _, offset := range []string{"2147483647", "99999999999999999999999", "9223372036854775807"} {
		p := newPolicy(offset, false)
		got, err := p.Validate(ctx, ptr(farFuture), true, now)
		require.NoError(t, err, "offset %s", offset)
		assert.True(t, got.Equal(farFuture))

		upper, err := p.MaxSelectable(ctx, now)
		require.NoError(t, err)
		assert.Nil(t, upper, "offset %s is unbounded", offset)
	}
}

func TestValidateOffsetBeyondDurationRange(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newPolicy("3000000", false)

	upper, err := p.MaxSelectable(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, upper)
	assert.Equal(t, now.AddDate(0, 0, 125000), *upper)

	_, err = p.Validate(ctx, ptr(now.AddDate(400, 0, 0)), true, now)
	verr := requireCode(t, err, CodeExpiryTooFar)
	assert.Equal(t, int64(3000000), verr.MaxOffsetHours)

	got, err := p.Validate(ctx, ptr(now.AddDate(300, 0, 0)), true, now)
	require.NoError(t, err)
	assert.True(t, got.Equal(now.AddDate(300, 0, 0)))
}

func TestDefaultExpirySaturates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewExpiryPolicy(staticSettings{
		settings.DefaultExpiryOffset: "9223372036854775807",
		settings.MaxExpiryOffset:     "336",
		settings.AllowOptionalExpiry: "false",
	})

	def, err := p.DefaultExpiry(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 9999, def.Year())
}

func TestValidateOptionalExpiryGating(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := newPolicy("336", false).Validate(ctx, nil, false, now)
	requireCode(t, err, CodeExpiryRequired)

	got, err := newPolicy("336", true).Validate(ctx, nil, false, now)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Optional expiry skips every other check, even a past date.
	got, err = newPolicy("336", true).Validate(ctx, ptr(now.Add(-time.Hour)), false, now)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = newPolicy("336", true).Validate(ctx, nil, true, now)
	requireCode(t, err, CodeExpiryRequired)
}

func TestValidateMandatoryIgnoresEnableFlag(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	requested := now.Add(time.Hour)

	got, err := newPolicy("336", false).Validate(ctx, &requested, false, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(requested))
}

func TestValidateRejectsMalformedOffset(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := newPolicy("lots", false).Validate(ctx, ptr(now.Add(time.Hour)), true, now)
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr), "a broken setting is not the uploader's fault")
}

func TestBounds(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newPolicy("336", true)

	b, err := p.Bounds(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), b.Default)
	assert.Equal(t, now, b.Min)
	require.NotNil(t, b.Max)
	assert.Equal(t, now.Add(336*time.Hour), *b.Max)
	assert.True(t, b.AllowOptional)

	assert.Equal(t, now, p.MinSelectable(now))

	def, err := newPolicy("336", false).DefaultExpiry(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), def)
}
