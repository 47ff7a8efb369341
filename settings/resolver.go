package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/basit/shifter/cache"
	"github.com/basit/shifter/logging"
	"github.com/basit/shifter/models"
)

// ValidationError maps setting keys to the reason their value was refused.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

type Entry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type SetupReport struct {
	Created []string
	Deleted []string
}

type Option func(*Resolver)

// WithCache puts a read-through cache in front of the settings table.
func WithCache(c cache.Cacher, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = c
		r.ttl = ttl
	}
}

func WithSchema(s Schema) Option {
	return func(r *Resolver) {
		r.schema = s
	}
}

// Resolver returns effective setting values: the persisted override when a
// row exists, the schema default otherwise. It is safe for concurrent use.
type Resolver struct {
	db       *gorm.DB
	schema   Schema
	cache    cache.Cacher
	ttl      time.Duration
	validate *validator.Validate
}

func NewResolver(db *gorm.DB, opts ...Option) *Resolver {
	r := &Resolver{
		db:       db,
		schema:   DefaultSchema,
		ttl:      time.Minute,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.validate.RegisterValidation("bytesize", func(fl validator.FieldLevel) bool {
		_, err := ParseByteSize(fl.Field().String())
		return err == nil
	})
	return r
}

func (r *Resolver) Schema() Schema {
	return r.schema
}

// Get returns the effective value for key: a bool for boolean settings and
// the stored text for everything else. Unknown keys panic.
func (r *Resolver) Get(ctx context.Context, key string) (any, error) {
	def := r.schema.definition(key)
	raw, err := r.raw(ctx, key, def)
	if err != nil {
		return nil, err
	}
	return coerce(def.Kind, raw), nil
}

func (r *Resolver) String(ctx context.Context, key string) (string, error) {
	v, err := r.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if b, ok := v.(bool); ok {
		if b {
			return "true", nil
		}
		return "false", nil
	}
	return v.(string), nil
}

// Bool reads a boolean setting. Keys of any other kind panic, like unknown
// keys do.
func (r *Resolver) Bool(ctx context.Context, key string) (bool, error) {
	def := r.schema.definition(key)
	if def.Kind != Boolean {
		panic(fmt.Sprintf("settings: %q is a %s setting, not boolean", key, def.Kind))
	}
	raw, err := r.raw(ctx, key, def)
	if err != nil {
		return false, err
	}
	return coerce(Boolean, raw).(bool), nil
}

func (r *Resolver) raw(ctx context.Context, key string, def Definition) (string, error) {
	load := func() (string, error) {
		var row models.SiteSetting
		err := r.db.WithContext(ctx).Where("name = ?", key).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return def.Default, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to read setting %s: %w", key, err)
		}
		return row.Value, nil
	}
	if r.cache == nil {
		return load()
	}
	return cache.Fetch(ctx, r.cache, "setting:"+key, r.ttl, load)
}

func (r *Resolver) invalidate(ctx context.Context, keys ...string) {
	if r.cache == nil || len(keys) == 0 {
		return
	}
	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = "setting:" + k
	}
	if err := r.cache.Delete(ctx, cacheKeys...); err != nil {
		logging.FromContext(ctx).Warn("failed to invalidate settings cache", zap.Error(err))
	}
}

// All lists every schema setting with its effective value.
func (r *Resolver) All(ctx context.Context) ([]Entry, error) {
	entries := make([]Entry, 0, len(r.schema))
	for _, key := range r.schema.Keys() {
		def := r.schema[key]
		raw, err := r.raw(ctx, key, def)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Label: def.Label, Kind: def.Kind.String(), Value: raw})
	}
	return entries, nil
}

// Update validates every value against the schema and persists them in a
// single transaction. Nothing is written when any value is refused.
func (r *Resolver) Update(ctx context.Context, values map[string]string) error {
	invalid := map[string]string{}
	for key, value := range values {
		def, ok := r.schema[key]
		if !ok {
			invalid[key] = "unknown setting"
			continue
		}
		if err := r.validate.Var(strings.TrimSpace(value), def.Rule); err != nil {
			invalid[key] = fmt.Sprintf("invalid %s value", def.Kind)
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{Fields: invalid}
	}

	keys := make([]string, 0, len(values))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			row := models.SiteSetting{Name: key, Value: strings.TrimSpace(value)}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("failed to save setting %s: %w", key, err)
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, keys...)
	return nil
}

// Setup seeds a row with the default for every schema key that has none and
// removes rows whose key is no longer part of the schema.
func (r *Resolver) Setup(ctx context.Context) (*SetupReport, error) {
	report := &SetupReport{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.SiteSetting
		if err := tx.Find(&rows).Error; err != nil {
			return err
		}
		existing := make(map[string]bool, len(rows))
		for _, row := range rows {
			existing[row.Name] = true
			if _, ok := r.schema[row.Name]; !ok {
				if err := tx.Delete(&models.SiteSetting{}, "name = ?", row.Name).Error; err != nil {
					return err
				}
				report.Deleted = append(report.Deleted, row.Name)
			}
		}
		for _, key := range r.schema.Keys() {
			if existing[key] {
				continue
			}
			row := models.SiteSetting{Name: key, Value: r.schema[key].Default}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
			report.Created = append(report.Created, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up site settings: %w", err)
	}
	r.invalidate(ctx, append(append([]string{}, report.Created...), report.Deleted...)...)
	return report, nil
}
