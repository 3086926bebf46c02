// Package sqlite implements the db contract on SQLite (modernc.org/sqlite) or
// libSQL/Turso (libsql-client-go) through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/microblog/internal/db"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

var _ db.Querier = (*Queries)(nil)

func New(d DBTX) *Queries {
	return &Queries{db: d}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Timestamps are stored as unix nanoseconds so that both drivers order and
// round-trip them identically.
func toUnix(t time.Time) int64 { return t.UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

const insertTweet = `
INSERT INTO tweets (id, publisher, body, published_at, discarded)
VALUES (?, ?, ?, ?, 0)`

func (q *Queries) InsertTweet(ctx context.Context, arg db.InsertTweetParams) error {
	_, err := q.db.ExecContext(ctx, insertTweet, arg.ID.String(), arg.Publisher, arg.Body, toUnix(arg.PublishedAt))
	return normalize(err)
}

const updateTweetBody = `UPDATE tweets SET body = ? WHERE id = ?`

func (q *Queries) UpdateTweetBody(ctx context.Context, arg db.UpdateTweetBodyParams) error {
	res, err := q.db.ExecContext(ctx, updateTweetBody, arg.Body, arg.ID.String())
	if err != nil {
		return normalize(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return normalize(err)
	}
	if n == 0 {
		return db.ErrNoRows
	}
	return nil
}

const insertLink = `
INSERT INTO tweet_links (tweet_id, position, char_offset, url)
VALUES (?, ?, ?, ?)`

func (q *Queries) InsertLink(ctx context.Context, arg db.InsertLinkParams) error {
	_, err := q.db.ExecContext(ctx, insertLink, arg.TweetID.String(), arg.Position, arg.Offset, arg.URL)
	return normalize(err)
}

const tweetColumns = `id, publisher, body, published_at, discarded`

type scanner interface {
	Scan(dest ...any) error
}

func scanTweet(row scanner) (db.Tweet, error) {
	var (
		t           db.Tweet
		id          string
		publishedAt int64
	)
	if err := row.Scan(&id, &t.Publisher, &t.Body, &publishedAt, &t.Discarded); err != nil {
		return db.Tweet{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return db.Tweet{}, err
	}
	t.ID = parsed
	t.PublishedAt = fromUnix(publishedAt)
	return t, nil
}

const getTweet = `SELECT ` + tweetColumns + ` FROM tweets WHERE id = ?`

func (q *Queries) GetTweet(ctx context.Context, id uuid.UUID) (db.Tweet, error) {
	t, err := scanTweet(q.db.QueryRowContext(ctx, getTweet, id.String()))
	if err != nil {
		return db.Tweet{}, normalize(err)
	}
	return t, nil
}

const listLinks = `
SELECT tweet_id, position, char_offset, url
FROM tweet_links
WHERE tweet_id IN (/*ids*/)
ORDER BY tweet_id, position`

// maxLinkArgs caps the ids bound in one ListLinks statement. SQLite rejects
// statements with more than 32766 variables.
var maxLinkArgs = 30000

func (q *Queries) ListLinks(ctx context.Context, tweetIDs []uuid.UUID) ([]db.Link, error) {
	var items []db.Link
	for chunk := range slices.Chunk(tweetIDs, maxLinkArgs) {
		links, err := q.listLinks(ctx, chunk)
		if err != nil {
			return nil, err
		}
		items = append(items, links...)
	}
	return items, nil
}

func (q *Queries) listLinks(ctx context.Context, tweetIDs []uuid.UUID) ([]db.Link, error) {
	args := make([]any, len(tweetIDs))
	for i, id := range tweetIDs {
		args[i] = id.String()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tweetIDs)), ",")
	query := strings.Replace(listLinks, "/*ids*/", placeholders, 1)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, normalize(err)
	}
	defer rows.Close()

	var items []db.Link
	for rows.Next() {
		var (
			l  db.Link
			id string
		)
		if err := rows.Scan(&id, &l.Position, &l.Offset, &l.URL); err != nil {
			return nil, normalize(err)
		}
		if l.TweetID, err = uuid.Parse(id); err != nil {
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
SELECT ` + tweetColumns + `
FROM tweets
WHERE discarded = 0
ORDER BY published_at DESC, id DESC`

func (q *Queries) ListActiveTweets(ctx context.Context) ([]db.Tweet, error) {
	return q.listTweets(ctx, listActiveTweets)
}

const listDiscardedTweets = `
SELECT ` + tweetColumns + `
FROM tweets
WHERE discarded = 1 AND publisher = ?
ORDER BY published_at DESC, id DESC`

func (q *Queries) ListDiscardedTweets(ctx context.Context, publisher string) ([]db.Tweet, error) {
	return q.listTweets(ctx, listDiscardedTweets, publisher)
}

func (q *Queries) listTweets(ctx context.Context, query string, args ...any) ([]db.Tweet, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, normalize(err)
	}
	defer rows.Close()

	var items []db.Tweet
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, normalize(err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, normalize(err)
	}
	return items, nil
}

const markTweetDiscarded = `UPDATE tweets SET discarded = 1, published_at = ? WHERE id = ?`

func (q *Queries) MarkTweetDiscarded(ctx context.Context, arg db.MarkTweetDiscardedParams) (int64, error) {
	return q.exec(ctx, markTweetDiscarded, toUnix(arg.PublishedAt), arg.ID.String())
}

const deleteLinks = `DELETE FROM tweet_links WHERE tweet_id = ?`

func (q *Queries) DeleteLinks(ctx context.Context, tweetID uuid.UUID) (int64, error) {
	return q.exec(ctx, deleteLinks, tweetID.String())
}

const deleteTweet = `DELETE FROM tweets WHERE id = ?`

func (q *Queries) DeleteTweet(ctx context.Context, id uuid.UUID) (int64, error) {
	return q.exec(ctx, deleteTweet, id.String())
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, normalize(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, normalize(err)
	}
	return n, nil
}
