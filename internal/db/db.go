// Package db defines the relational contract behind the tweet store: the row
// types of the tweets and tweet_links tables, the queries the store needs and
// the sentinel errors every backend normalizes its driver errors to.
//
// Backends live in subpackages: pg (PostgreSQL through pgx) and sqlite
// (SQLite or libSQL through database/sql).
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoRows is returned when a single-row query matched nothing.
	ErrNoRows = errors.New("db: no rows in result set")
	// ErrDuplicate is returned when an insert violates a primary key or unique constraint.
	ErrDuplicate = errors.New("db: duplicate key")
	// ErrBackend is returned for every other driver failure.
	ErrBackend = errors.New("db: backend failure")
)

// Opaque wraps a driver error in ErrBackend. Only the driver's message is kept,
// so callers cannot reach driver error types with errors.As. Context
// cancellation and deadline errors stay matchable with errors.Is.
func Opaque(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrBackend, context.Canceled)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrBackend, context.DeadlineExceeded)
	default:
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
}

//go:embed schema/postgres.sql
var PostgresSchema string

//go:embed schema/sqlite.sql
var SQLiteSchema string

// Tweet is a row of the tweets table. Body holds the stripped text.
type Tweet struct {
	ID          uuid.UUID
	Publisher   string
	Body        string
	PublishedAt time.Time
	Discarded   bool
}

// Link is a row of the tweet_links table.
type Link struct {
	TweetID  uuid.UUID
	Position int32
	Offset   int32
	URL      string
}

type InsertTweetParams struct {
	ID          uuid.UUID
	Publisher   string
	Body        string
	PublishedAt time.Time
}

type UpdateTweetBodyParams struct {
	ID   uuid.UUID
	Body string
}

type InsertLinkParams struct {
	TweetID  uuid.UUID
	Position int32
	Offset   int32
	URL      string
}

type MarkTweetDiscardedParams struct {
	ID          uuid.UUID
	PublishedAt time.Time
}

// Querier is the set of statements the tweet store runs.
type Querier interface {
	InsertTweet(ctx context.Context, arg InsertTweetParams) error
	UpdateTweetBody(ctx context.Context, arg UpdateTweetBodyParams) error
	InsertLink(ctx context.Context, arg InsertLinkParams) error
	GetTweet(ctx context.Context, id uuid.UUID) (Tweet, error)
	// ListLinks returns the links of the given tweets. Links of one tweet are
	// ordered by position.
	ListLinks(ctx context.Context, tweetIDs []uuid.UUID) ([]Link, error)
	ListActiveTweets(ctx context.Context) ([]Tweet, error)
	ListDiscardedTweets(ctx context.Context, publisher string) ([]Tweet, error)
	MarkTweetDiscarded(ctx context.Context, arg MarkTweetDiscardedParams) (int64, error)
	DeleteLinks(ctx context.Context, tweetID uuid.UUID) (int64, error)
	DeleteTweet(ctx context.Context, id uuid.UUID) (int64, error)
}

// Store is a Querier that can also run a group of statements atomically.
type Store interface {
	Querier
	// ExecTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise; fn's error is returned unchanged.
	ExecTx(ctx context.Context, fn func(Querier) error) error
	Ping(ctx context.Context) error
	Close() error
}
