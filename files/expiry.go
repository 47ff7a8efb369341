package files

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/basit/shifter/settings"
)

// SettingsSource is the part of settings.Resolver the expiry rules read.
type SettingsSource interface {
	String(ctx context.Context, key string) (string, error)
	Bool(ctx context.Context, key string) (bool, error)
}

type ExpiryPolicy struct {
	settings SettingsSource
}

func NewExpiryPolicy(s SettingsSource) *ExpiryPolicy {
	return &ExpiryPolicy{settings: s}
}

// Bounds are the values an upload form offers, all computed from one now.
type Bounds struct {
	Default       time.Time  `json:"default_expiry"`
	Min           time.Time  `json:"min_expiry"`
	Max           *time.Time `json:"max_expiry"`
	AllowOptional bool       `json:"allow_optional_expiry"`
}

// Validate checks a requested expiry against the site policy at now. A nil
// result with a nil error means the file never expires.
func (p *ExpiryPolicy) Validate(ctx context.Context, requested *time.Time, enableExpiry bool, now time.Time) (*time.Time, error) {
	allowOptional, err := p.settings.Bool(ctx, settings.AllowOptionalExpiry)
	if err != nil {
		return nil, err
	}
	if allowOptional && !enableExpiry {
		return nil, nil
	}
	if requested == nil {
		return nil, expiryRequired()
	}
	if requested.Before(now) {
		return nil, expiryInPast()
	}

	hours, err := p.hours(ctx, settings.MaxExpiryOffset)
	if err != nil {
		return nil, err
	}
	if maxAllowed, ok := addHours(now, hours); ok && requested.After(maxAllowed) {
		return nil, expiryTooFar(hours)
	}

	expiresAt := *requested
	return &expiresAt, nil
}

// DefaultExpiry is now plus default_expiry_offset hours. An offset reaching
// past year 9999 saturates at the end of that year.
func (p *ExpiryPolicy) DefaultExpiry(ctx context.Context, now time.Time) (time.Time, error) {
	hours, err := p.hours(ctx, settings.DefaultExpiryOffset)
	if err != nil {
		return time.Time{}, err
	}
	if t, ok := addHours(now, hours); ok {
		return t, nil
	}
	return latestExpiry, nil
}

func (p *ExpiryPolicy) MinSelectable(now time.Time) time.Time {
	return now
}

// MaxSelectable returns nil when now plus max_expiry_offset lies beyond
// year 9999, in which case no upper bound applies.
func (p *ExpiryPolicy) MaxSelectable(ctx context.Context, now time.Time) (*time.Time, error) {
	hours, err := p.hours(ctx, settings.MaxExpiryOffset)
	if err != nil {
		return nil, err
	}
	t, ok := addHours(now, hours)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (p *ExpiryPolicy) Bounds(ctx context.Context, now time.Time) (*Bounds, error) {
	def, err := p.DefaultExpiry(ctx, now)
	if err != nil {
		return nil, err
	}
	upper, err := p.MaxSelectable(ctx, now)
	if err != nil {
		return nil, err
	}
	allowOptional, err := p.settings.Bool(ctx, settings.AllowOptionalExpiry)
	if err != nil {
		return nil, err
	}
	return &Bounds{
		Default:       def,
		Min:           p.MinSelectable(now),
		Max:           upper,
		AllowOptional: allowOptional,
	}, nil
}

// hours reads an integer offset setting. Values outside int64 are reported
// as math.MaxInt64 or math.MinInt64 so addHours treats them as out of range.
func (p *ExpiryPolicy) hours(ctx context.Context, key string) (int64, error) {
	raw, err := p.settings.String(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			if strings.HasPrefix(strings.TrimSpace(raw), "-") {
				return math.MinInt64, nil
			}
			return math.MaxInt64, nil
		}
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return n, nil
}

// maxExpiryYear is the last year an expiry may fall in.
const maxExpiryYear = 9999

// latestExpiry is the furthest expiry the policy can produce.
var latestExpiry = time.Date(maxExpiryYear, 12, 31, 23, 59, 59, 999999000, time.UTC)

// addHours reports false when t plus hours falls outside years 1 to 9999.
// The offset is added as whole days and remaining hours, so offsets beyond
// the range of a time.Duration still resolve to a timestamp.
func addHours(t time.Time, hours int64) (time.Time, bool) {
	const maxDays = (maxExpiryYear + 1) * 366
	days := hours / 24
	if days > maxDays || days < -maxDays {
		return time.Time{}, false
	}
	sum := t.UTC().AddDate(0, 0, int(days)).Add(time.Duration(hours%24) * time.Hour).In(t.Location())
	if y := sum.Year(); y < 1 || y > maxExpiryYear {
		return time.Time{}, false
	}
	return sum, true
}
