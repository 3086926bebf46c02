package tweet

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/microblog/internal/errx"
)

// Counter names incremented by the service.
const (
	CounterPublished        = "published-tweets"
	CounterQueried          = "times-queried-tweets"
	CounterQueriedDiscarded = "times-queried-discarded-tweets"
	CounterDiscarded        = "discarded-tweets"
)

const DefaultCounterTimeout = 2 * time.Second

// Counter records named usage counts.
type Counter interface {
	Increment(ctx context.Context, name string) error
}

type nopCounter struct{}

func (nopCounter) Increment(context.Context, string) error { return nil }

// Service defines the publishing operations exposed to clients.
type Service interface {
	Publish(ctx context.Context, req PublishRequest) (Tweet, error)
	ListAll(ctx context.Context) ([]Tweet, error)
	ListDiscarded(ctx context.Context, publisher string) ([]Tweet, error)
	Discard(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo           Repository
	counter        Counter
	counterTimeout time.Duration
	logger         *slog.Logger
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Counter Counter
	// CounterTimeout bounds each counter increment (default: 2s).
	CounterTimeout time.Duration
	Logger         *slog.Logger
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	counter := config.Counter
	if counter == nil {
		counter = nopCounter{}
	}

	timeout := config.CounterTimeout
	if timeout <= 0 {
		timeout = DefaultCounterTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		repo:           repo,
		counter:        counter,
		counterTimeout: timeout,
		logger:         logger,
	}
}

func (s *service) Publish(ctx context.Context, req PublishRequest) (Tweet, error) {
	const op = "tweet.service.Publish"

	if err := ValidatePublish(req); err != nil {
		return Tweet{}, errx.E(op, errx.Invalid, err)
	}

	s.count(ctx, CounterPublished)

	saved, err := s.repo.Save(ctx, Tweet{
		Publisher: req.Publisher,
		Text:      req.Text,
	})
	if err != nil {
		return Tweet{}, errx.Wrap(op, err)
	}
	return saved, nil
}

func (s *service) ListAll(ctx context.Context) ([]Tweet, error) {
	const op = "tweet.service.ListAll"

	s.count(ctx, CounterQueried)

	tweets, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return tweets, nil
}

func (s *service) ListDiscarded(ctx context.Context, publisher string) ([]Tweet, error) {
	const op = "tweet.service.ListDiscarded"

	if isBlank(publisher) {
		return nil, errx.E(op, errx.Invalid, ErrPublisherRequired)
	}

	s.count(ctx, CounterQueriedDiscarded)

	tweets, err := s.repo.ListDiscarded(ctx, publisher)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return tweets, nil
}

func (s *service) Discard(ctx context.Context, id uuid.UUID) error {
	const op = "tweet.service.Discard"

	s.count(ctx, CounterDiscarded)

	if err := s.repo.Discard(ctx, id); err != nil {
		return errx.Wrap(op, err)
	}
	return nil
}

// count increments a counter before the store is called, so attempts are
// counted whether or not they succeed. Failures are logged and dropped.
func (s *service) count(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.counterTimeout)
	defer cancel()

	if err := s.counter.Increment(ctx, name); err != nil {
		s.logger.WarnContext(ctx, "counter increment failed",
			"counter", name,
			"error", err.Error(),
		)
	}
}
