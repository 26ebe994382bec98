package options

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Option keys.
const (
	QueueBatchSize              = "queue_batch_size"
	QueueLockCooldownSeconds    = "queue_lock_cooldown_seconds"
	BatchPageSize               = "batch_page_size"
	ConversionWindowDays        = "conversion_window_days"
	AbandonedCartTimeoutMinutes = "abandoned_cart_timeout_minutes"
	FailedQueueRetentionDays    = "failed_queue_retention_days"
	DuplicateWindowHours        = "duplicate_window_hours"
	Timezone                    = "timezone"
	Version                     = "version"
)

// Defaults holds the value used when an option is unset.
var Defaults = map[string]string{
	QueueBatchSize:              "50",
	QueueLockCooldownSeconds:    "55",
	BatchPageSize:               "100",
	ConversionWindowDays:        "14",
	AbandonedCartTimeoutMinutes: "15",
	FailedQueueRetentionDays:    "30",
	DuplicateWindowHours:        "0",
	Timezone:                    "UTC",
	Version:                     "1",
}

// Settings reads typed options. Store errors and unparsable values fall
// back to the documented default and are logged.
type Settings struct {
	store  Store
	logger *slog.Logger
}

func NewSettings(logger *slog.Logger, store Store) *Settings {
	return &Settings{store: store, logger: logger.With("module", "options")}
}

func (s *Settings) Store() Store {
	return s.store
}

func (s *Settings) String(ctx context.Context, key string) string {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read option, using default", "key", key, "error", err)
	}

	if err != nil || !ok || v == "" {
		return Defaults[key]
	}

	return v
}

func (s *Settings) Int(ctx context.Context, key string) int {
	v := s.String(ctx, key)

	n, err := strconv.Atoi(v)
	if err != nil {
		s.logger.WarnContext(ctx, "Invalid integer option, using default", "key", key, "value", v)

		n, _ = strconv.Atoi(Defaults[key])
	}

	return n
}

func (s *Settings) Bool(ctx context.Context, key string) bool {
	v := s.String(ctx, key)

	b, err := strconv.ParseBool(v)
	if err != nil {
		b, _ = strconv.ParseBool(Defaults[key])
	}

	return b
}

func (s *Settings) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, key, value)
}

func (s *Settings) SetInt(ctx context.Context, key string, value int) error {
	return s.store.Set(ctx, key, strconv.Itoa(value))
}

func (s *Settings) QueueBatchSize(ctx context.Context) int {
	return max(1, s.Int(ctx, QueueBatchSize))
}

func (s *Settings) QueueLockCooldown(ctx context.Context) time.Duration {
	return time.Duration(s.Int(ctx, QueueLockCooldownSeconds)) * time.Second
}

func (s *Settings) BatchPageSize(ctx context.Context) int {
	return max(1, s.Int(ctx, BatchPageSize))
}

func (s *Settings) ConversionWindow(ctx context.Context) time.Duration {
	return time.Duration(s.Int(ctx, ConversionWindowDays)) * 24 * time.Hour
}

func (s *Settings) AbandonedCartTimeout(ctx context.Context) time.Duration {
	return time.Duration(s.Int(ctx, AbandonedCartTimeoutMinutes)) * time.Minute
}

func (s *Settings) FailedQueueRetention(ctx context.Context) time.Duration {
	return time.Duration(s.Int(ctx, FailedQueueRetentionDays)) * 24 * time.Hour
}

// DuplicateWindow is the look-back for duplicate suppression; zero means
// forever.
func (s *Settings) DuplicateWindow(ctx context.Context) time.Duration {
	return time.Duration(s.Int(ctx, DuplicateWindowHours)) * time.Hour
}

// Location returns the shop timezone, UTC when unknown.
func (s *Settings) Location(ctx context.Context) *time.Location {
	name := s.String(ctx, Timezone)

	loc, err := time.LoadLocation(name)
	if err != nil {
		s.logger.WarnContext(ctx, "Unknown timezone, using UTC", "timezone", name)

		return time.UTC
	}

	return loc
}

func (s *Settings) Version(ctx context.Context) string {
	return s.String(ctx, Version)
}

// BumpVersion stores a fresh version, which invalidates caches keyed on it.
func (s *Settings) BumpVersion(ctx context.Context) (string, error) {
	v := uuid.NewString()

	return v, s.store.Set(ctx, Version, v)
}
