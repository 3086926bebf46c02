package tweet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/microblog/internal/db"
	"github.com/sundayezeilo/microblog/internal/errx"
	"github.com/sundayezeilo/microblog/internal/idgen"
	"github.com/sundayezeilo/microblog/linkext"
)

var (
	// ErrInvalidID is wrapped when a tweet to discard does not exist.
	ErrInvalidID = errors.New("invalid tweet id")
	// ErrTooLong is wrapped when the text left after link extraction exceeds MaxTextLength.
	ErrTooLong = errors.New("tweet text too long")
	// ErrNotFound is wrapped when a tweet to delete does not exist.
	ErrNotFound = errors.New("tweet not found")
)

type store struct {
	db     db.Store
	ids    idgen.Generator
	clock  func() time.Time
	logger *slog.Logger
}

// StoreConfig holds configuration for the store.
type StoreConfig struct {
	IDGenerator idgen.Generator
	// Clock supplies tweet dates. Defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// NewStore returns a Repository backed by a relational db.Store.
func NewStore(s db.Store, config *StoreConfig) Repository {
	if config == nil {
		config = &StoreConfig{}
	}

	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewV7(idgen.WithRetries(1))
	}

	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &store{
		db:     s,
		ids:    ids,
		clock:  clock,
		logger: logger,
	}
}

// now is truncated to the precision every backend keeps.
func (s *store) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, db.ErrDuplicate):
		return errx.E(op, errx.Conflict, err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

// classify keeps kinds assigned inside a transaction and maps everything
// else (begin, commit and rollback failures) as a backend error.
func classify(op string, err error) error {
	if errx.KindOf(err) != errx.Unknown {
		return err
	}
	return mapStoreError(op, err)
}

func (s *store) Save(ctx context.Context, t Tweet) (Tweet, error) {
	const op = "tweet.store.Save"

	id, err := s.ids.Generate()
	if err != nil {
		return Tweet{}, errx.E(op, errx.Unavailable, err)
	}

	saved := Tweet{
		ID:        id,
		Publisher: t.Publisher,
		Text:      t.Text,
		Date:      s.now(),
	}

	err = s.db.ExecTx(ctx, func(q db.Querier) error {
		// The placeholder row claims the id before any text is checked.
		if err := q.InsertTweet(ctx, db.InsertTweetParams{
			ID:          id,
			Publisher:   t.Publisher,
			PublishedAt: saved.Date,
		}); err != nil {
			return mapStoreError(op, err)
		}

		body, links := linkext.Extract(t.Text)
		if n := linkext.Len(body); n > MaxTextLength {
			return errx.Errorf(op, errx.Invalid,
				"%w: %d characters without links, max %d", ErrTooLong, n, MaxTextLength)
		}

		if err := q.UpdateTweetBody(ctx, db.UpdateTweetBodyParams{ID: id, Body: body}); err != nil {
			return mapStoreError(op, err)
		}

		for i, l := range links {
			if err := q.InsertLink(ctx, db.InsertLinkParams{
				TweetID:  id,
				Position: int32(i),
				Offset:   int32(l.Offset),
				URL:      l.URL,
			}); err != nil {
				return mapStoreError(op, err)
			}
		}

		saved.Links = links
		return nil
	})
	if err != nil {
		return Tweet{}, classify(op, err)
	}

	s.logger.DebugContext(ctx, "tweet saved",
		"tweet_id", id.String(),
		"publisher", saved.Publisher,
		"links", len(saved.Links),
	)
	return saved, nil
}

func (s *store) FindByID(ctx context.Context, id uuid.UUID) (*Tweet, error) {
	const op = "tweet.store.FindByID"

	row, err := s.db.GetTweet(ctx, id)
	if errors.Is(err, db.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapStoreError(op, err)
	}

	tweets, err := s.withLinks(ctx, []db.Tweet{row})
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	return &tweets[0], nil
}

func (s *store) ListActive(ctx context.Context) ([]Tweet, error) {
	const op = "tweet.store.ListActive"

	rows, err := s.db.ListActiveTweets(ctx)
	if err != nil {
		return nil, mapStoreError(op, err)
	}

	tweets, err := s.withLinks(ctx, rows)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	return tweets, nil
}

func (s *store) ListDiscarded(ctx context.Context, publisher string) ([]Tweet, error) {
	const op = "tweet.store.ListDiscarded"

	rows, err := s.db.ListDiscardedTweets(ctx, publisher)
	if err != nil {
		return nil, mapStoreError(op, err)
	}

	tweets, err := s.withLinks(ctx, rows)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	return tweets, nil
}

func (s *store) Discard(ctx context.Context, id uuid.UUID) error {
	const op = "tweet.store.Discard"

	err := s.db.ExecTx(ctx, func(q db.Querier) error {
		if _, err := q.GetTweet(ctx, id); err != nil {
			if errors.Is(err, db.ErrNoRows) {
				return errx.Errorf(op, errx.Invalid, "%w: %s", ErrInvalidID, id)
			}
			return mapStoreError(op, err)
		}

		n, err := q.MarkTweetDiscarded(ctx, db.MarkTweetDiscardedParams{ID: id, PublishedAt: s.now()})
		if err != nil {
			return mapStoreError(op, err)
		}
		if n == 0 {
			return errx.Errorf(op, errx.Invalid, "%w: %s", ErrInvalidID, id)
		}
		return nil
	})
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// Delete removes a tweet and its links.
func (s *store) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "tweet.store.Delete"

	err := s.db.ExecTx(ctx, func(q db.Querier) error {
		if _, err := q.DeleteLinks(ctx, id); err != nil {
			return mapStoreError(op, err)
		}

		n, err := q.DeleteTweet(ctx, id)
		if err != nil {
			return mapStoreError(op, err)
		}
		if n == 0 {
			return errx.Errorf(op, errx.NotFound, "%w: %s", ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// withLinks loads the links of rows in one query and rebuilds each full text.
// The result is never nil.
func (s *store) withLinks(ctx context.Context, rows []db.Tweet) ([]Tweet, error) {
	tweets := make([]Tweet, 0, len(rows))
	if len(rows) == 0 {
		return tweets, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	linkRows, err := s.db.ListLinks(ctx, ids)
	if err != nil {
		return nil, err
	}

	byTweet := make(map[uuid.UUID][]linkext.Link, len(rows))
	for _, l := range linkRows {
		byTweet[l.TweetID] = append(byTweet[l.TweetID], linkext.Link{
			Offset: int(l.Offset),
			URL:    l.URL,
		})
	}

	for _, r := range rows {
		links := byTweet[r.ID]
		tweets = append(tweets, Tweet{
			ID:        r.ID,
			Publisher: r.Publisher,
			Text:      linkext.Reinsert(r.Body, links),
			Date:      r.PublishedAt.UTC(),
			Discarded: r.Discarded,
			Links:     links,
		})
	}
	return tweets, nil
}
