// Package pg implements the db contract on PostgreSQL using pgx.
package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/microblog/internal/db"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the tweet statements against a DBTX.
type Queries struct {
	db DBTX
}

var _ db.Querier = (*Queries)(nil)

func New(d DBTX) *Queries {
	return &Queries{db: d}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const insertTweet = `
INSERT INTO tweets (id, publisher, body, published_at, discarded)
VALUES ($1, $2, $3, $4, FALSE)`

func (q *Queries) InsertTweet(ctx context.Context, arg db.InsertTweetParams) error {
	_, err := q.db.Exec(ctx, insertTweet, arg.ID, arg.Publisher, arg.Body, arg.PublishedAt)
	return normalize(err)
}

const updateTweetBody = `UPDATE tweets SET body = $2 WHERE id = $1`

func (q *Queries) UpdateTweetBody(ctx context.Context, arg db.UpdateTweetBodyParams) error {
	tag, err := q.db.Exec(ctx, updateTweetBody, arg.ID, arg.Body)
	if err != nil {
		return normalize(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNoRows
	}
	return nil
}

const insertLink = `
INSERT INTO tweet_links (tweet_id, position, char_offset, url)
VALUES ($1, $2, $3, $4)`

func (q *Queries) InsertLink(ctx context.Context, arg db.InsertLinkParams) error {
	_, err := q.db.Exec(ctx, insertLink, arg.TweetID, arg.Position, arg.Offset, arg.URL)
	return normalize(err)
}

const getTweet = `
SELECT id, publisher, body, published_at, discarded
FROM tweets
WHERE id = $1`

func (q *Queries) GetTweet(ctx context.Context, id uuid.UUID) (db.Tweet, error) {
	var t db.Tweet
	err := q.db.QueryRow(ctx, getTweet, id).Scan(
		&t.ID, &t.Publisher, &t.Body, &t.PublishedAt, &t.Discarded,
	)
	if err != nil {
		return db.Tweet{}, normalize(err)
	}
	return t, nil
}

const listLinks = `
SELECT tweet_id, position, char_offset, url
FROM tweet_links
WHERE tweet_id = ANY($1::uuid[])
ORDER BY tweet_id, position`

func (q *Queries) ListLinks(ctx context.Context, tweetIDs []uuid.UUID) ([]db.Link, error) {
	if len(tweetIDs) == 0 {
		return nil, nil
	}

	rows, err := q.db.Query(ctx, listLinks, tweetIDs)
	if err != nil {
		return nil, normalize(err)
	}
	defer rows.Close()

	var items []db.Link
	for rows.Next() {
		var l db.Link
		if err := rows.Scan(&l.TweetID, &l.Position, &l.Offset, &l.URL); err != nil {
			return nil, normalize(err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, normalize(err)
	}
	return items, nil
}

const listActiveTweets = `
SELECT id, publisher, body, published_at, discarded
FROM tweets
WHERE discarded = FALSE
ORDER BY published_at DESC, id DESC`

func (q *Queries) ListActiveTweets(ctx context.Context) ([]db.Tweet, error) {
	return q.listTweets(ctx, listActiveTweets)
}

const listDiscardedTweets = `
SELECT id, publisher, body, published_at, discarded
FROM tweets
WHERE discarded = TRUE AND publisher = $1
ORDER BY published_at DESC, id DESC`

func (q *Queries) ListDiscardedTweets(ctx context.Context, publisher string) ([]db.Tweet, error) {
	return q.listTweets(ctx, listDiscardedTweets, publisher)
}

func (q *Queries) listTweets(ctx context.Context, sql string, args ...any) ([]db.Tweet, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, normalize(err)
	}
	defer rows.Close()

	var items []db.Tweet
	for rows.Next() {
		var t db.Tweet
		if err := rows.Scan(&t.ID, &t.Publisher, &t.Body, &t.PublishedAt, &t.Discarded); err != nil {
			return nil, normalize(err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, normalize(err)
	}
	return items, nil
}

const markTweetDiscarded = `
UPDATE tweets
SET discarded = TRUE, published_at = $2
WHERE id = $1`

func (q *Queries) MarkTweetDiscarded(ctx context.Context, arg db.MarkTweetDiscardedParams) (int64, error) {
	tag, err := q.db.Exec(ctx, markTweetDiscarded, arg.ID, arg.PublishedAt)
	if err != nil {
		return 0, normalize(err)
	}
	return tag.RowsAffected(), nil
}

const deleteLinks = `DELETE FROM tweet_links WHERE tweet_id = $1`

func (q *Queries) DeleteLinks(ctx context.Context, tweetID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteLinks, tweetID)
	if err != nil {
		return 0, normalize(err)
	}
	return tag.RowsAffected(), nil
}

const deleteTweet = `DELETE FROM tweets WHERE id = $1`

func (q *Queries) DeleteTweet(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteTweet, id)
	if err != nil {
		return 0, normalize(err)
	}
	return tag.RowsAffected(), nil
}
