package labvalidation

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

var (
	// ErrInvalidInput marks caller mistakes such as a missing product id.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoTrustScore is returned when a product has no trust score history yet.
	ErrNoTrustScore = errors.New("product has no trust score")
)

const (
	defaultCacheTTL = 10 * time.Minute
	timeLayout      = time.RFC3339Nano
)

type Service struct {
	labs        ports.LabRepository
	validations ports.ValidationRepository
	uow         ports.UnitOfWork
	cache       ports.Cache
	notifier    ports.Notifier
	catalog     ports.CatalogSource

	cacheTTL time.Duration
	now      func() time.Time
	newID    func() string

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Service)

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithRand fixes the source used to generate simulated lab results.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// NewService wires the lab validation usecases. cache, notifier and catalog may be nil.
func NewService(
	labs ports.LabRepository,
	validations ports.ValidationRepository,
	uow ports.UnitOfWork,
	cache ports.Cache,
	notifier ports.Notifier,
	catalog ports.CatalogSource,
	opts ...Option,
) *Service {
	s := &Service{
		labs:        labs,
		validations: validations,
		uow:         uow,
		cache:       cache,
		notifier:    notifier,
		catalog:     catalog,
		cacheTTL:    defaultCacheTTL,
		now:         time.Now,
		newID:       uuid.NewString,
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) currentCatalog() validation.Catalog {
	if s.catalog == nil {
		return validation.DefaultCatalog()
	}
	if c := s.catalog.Catalog(); len(c) > 0 {
		return c
	}
	return validation.DefaultCatalog()
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.labs == nil {
		return errors.New("laboratory repository is required")
	}
	if s.validations == nil {
		return errors.New("validation repository is required")
	}
	if s.uow == nil {
		return errors.New("unit of work is required")
	}
	return nil
}

func (s *Service) logCtx(ctx context.Context, attrs ...slog.Attr) context.Context {
	return logging.WithAttrs(ctx, append([]slog.Attr{slog.String("component", "usecase.labvalidation")}, attrs...)...)
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		logging.Warn(s.logCtx(ctx), "cache set failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}

func (s *Service) deleteCacheBestEffort(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		logging.Warn(s.logCtx(ctx), "cache delete failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}

func cacheLatestTrustScoreKey(productID string) string {
	return "trust_score:latest:" + productID
}

func parseTimeOrZero(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
