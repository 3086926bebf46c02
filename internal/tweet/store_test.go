package tweet

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/microblog/internal/db"
	"github.com/sundayezeilo/microblog/internal/db/sqlite"
	"github.com/sundayezeilo/microblog/internal/errx"
	"github.com/sundayezeilo/microblog/internal/idgen"
)

/***************
 * Helpers
 ***************/

// fakeClock hands out strictly increasing times one second apart.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func openSQLite(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "tweets.db"), nil)
	if err != nil {
		t.Fatalf("sqlite.Open() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() unexpected error: %v", err)
	}
	return s
}

func newTestStore(t *testing.T) (Repository, *sqlite.Store, *fakeClock) {
	t.Helper()
	backend := openSQLite(t)
	clock := newFakeClock()
	return NewStore(backend, &StoreConfig{Clock: clock.Now}), backend, clock
}

func mustSave(t *testing.T, repo Repository, publisher, text string) Tweet {
	t.Helper()
	saved, err := repo.Save(context.Background(), Tweet{Publisher: publisher, Text: text})
	if err != nil {
		t.Fatalf("Save(%q) unexpected error: %v", text, err)
	}
	return saved
}

func countRows(t *testing.T, backend *sqlite.Store) int {
	t.Helper()
	active, err := backend.ListActiveTweets(context.Background())
	if err != nil {
		t.Fatalf("ListActiveTweets() unexpected error: %v", err)
	}
	return len(active)
}

/***************
 * Save / FindByID
 ***************/

func TestStore_SaveAndFind(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantLinks int
		wantBody  string
	}{
		{
			name:     "plain text",
			text:     "Hello, pirates!",
			wantBody: "Hello, pirates!",
		},
		{
			name:      "one link",
			text:      "See http://foo.com for details",
			wantLinks: 1,
			wantBody:  "See for details",
		},
		{
			name:      "two links",
			text:      "a http://x.io b https://y.io/path?q=1 c",
			wantLinks: 2,
			wantBody:  "a b c",
		},
		{
			name:     "link at the end without whitespace stays in the text",
			text:     "trailing http://x.io",
			wantBody: "trailing http://x.io",
		},
		{
			name:     "exactly 140 characters",
			text:     strings.Repeat("a", 140),
			wantBody: strings.Repeat("a", 140),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, backend, _ := newTestStore(t)
			ctx := context.Background()

			saved := mustSave(t, repo, "Guybrush", tt.text)
			if saved.ID == uuid.Nil {
				t.Fatal("Save() returned nil id")
			}
			if saved.Text != tt.text {
				t.Errorf("Save().Text = %q, want %q", saved.Text, tt.text)
			}
			if saved.Date.IsZero() || saved.Discarded {
				t.Errorf("Save() = %+v, want dated and active", saved)
			}
			if len(saved.Links) != tt.wantLinks {
				t.Errorf("Save() links = %d, want %d", len(saved.Links), tt.wantLinks)
			}

			row, err := backend.GetTweet(ctx, saved.ID)
			if err != nil {
				t.Fatalf("GetTweet() unexpected error: %v", err)
			}
			if row.Body != tt.wantBody {
				t.Errorf("stored body = %q, want %q", row.Body, tt.wantBody)
			}

			found, err := repo.FindByID(ctx, saved.ID)
			if err != nil {
				t.Fatalf("FindByID() unexpected error: %v", err)
			}
			if found == nil {
				t.Fatal("FindByID() = nil, want tweet")
			}
			if found.Text != tt.text {
				t.Errorf("FindByID().Text = %q, want %q", found.Text, tt.text)
			}
			if !found.Date.Equal(saved.Date) {
				t.Errorf("FindByID().Date = %v, want %v", found.Date, saved.Date)
			}
		})
	}
}

func TestStore_SaveLongTextWithLinks(t *testing.T) {
	repo, backend, _ := newTestStore(t)
	ctx := context.Background()

	// 130 characters of text plus a long link: well over 140 in total.
	text := strings.Repeat("x", 65) + " https://example.com/a/very/long/path/that/keeps/going?and=going&on=and-on " + strings.Repeat("y", 65)
	if len(text) <= MaxTextLength {
		t.Fatalf("test text too short: %d", len(text))
	}

	saved := mustSave(t, repo, "Guybrush", text)

	row, err := backend.GetTweet(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetTweet() unexpected error: %v", err)
	}
	if strings.Contains(row.Body, "http") {
		t.Errorf("stored body still contains a link: %q", row.Body)
	}

	found, err := repo.FindByID(ctx, saved.ID)
	if err != nil || found == nil {
		t.Fatalf("FindByID() = %v, %v", found, err)
	}
	if found.Text != text {
		t.Errorf("FindByID().Text = %q, want %q", found.Text, text)
	}
}

func TestStore_SaveTooLong(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"141 characters", strings.Repeat("a", 141)},
		{"141 characters after removing a link", strings.Repeat("a", 141) + " http://x.io "},
		{"multibyte characters count once", strings.Repeat("ã", 141)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, backend, _ := newTestStore(t)

			_, err := repo.Save(context.Background(), Tweet{Publisher: "Guybrush", Text: tt.text})
			if err == nil {
				t.Fatal("Save() expected error, got nil")
			}
			if errx.KindOf(err) != errx.Invalid {
				t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Invalid)
			}
			if !errors.Is(err, ErrTooLong) {
				t.Errorf("error = %v, want ErrTooLong", err)
			}
			if errx.OpOf(err) != "tweet.store.Save" {
				t.Errorf("OpOf(err) = %q, want %q", errx.OpOf(err), "tweet.store.Save")
			}

			// The placeholder row must not survive.
			if n := countRows(t, backend); n != 0 {
				t.Errorf("tweets after failed save = %d, want 0", n)
			}
		})
	}

	t.Run("140 characters after removing a link is accepted", func(t *testing.T) {
		repo, _, _ := newTestStore(t)
		mustSave(t, repo, "Guybrush", "http://x.io "+strings.Repeat("a", 140))
	})
}

func TestStore_SaveDuplicateID(t *testing.T) {
	backend := openSQLite(t)
	fixed := uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")
	repo := NewStore(backend, &StoreConfig{
		IDGenerator: idgen.Func(func() (uuid.UUID, error) { return fixed, nil }),
	})

	mustSave(t, repo, "Guybrush", "first")

	_, err := repo.Save(context.Background(), Tweet{Publisher: "Guybrush", Text: "second"})
	if errx.KindOf(err) != errx.Conflict {
		t.Fatalf("Save() error kind = %v, want %v (err = %v)", errx.KindOf(err), errx.Conflict, err)
	}
	if !errors.Is(err, db.ErrDuplicate) {
		t.Errorf("error = %v, want db.ErrDuplicate in chain", err)
	}
}

func TestStore_SaveIDGeneratorFailure(t *testing.T) {
	backend := openSQLite(t)
	boom := errors.New("entropy exhausted")
	repo := NewStore(backend, &StoreConfig{
		IDGenerator: idgen.Func(func() (uuid.UUID, error) { return uuid.Nil, boom }),
	})

	_, err := repo.Save(context.Background(), Tweet{Publisher: "Guybrush", Text: "hi"})
	if errx.KindOf(err) != errx.Unavailable || !errors.Is(err, boom) {
		t.Errorf("Save() error = %v, want Unavailable wrapping %v", err, boom)
	}
}

func TestStore_FindByIDMissing(t *testing.T) {
	repo, _, _ := newTestStore(t)

	found, err := repo.FindByID(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("FindByID() unexpected error: %v", err)
	}
	if found != nil {
		t.Errorf("FindByID() = %+v, want nil", found)
	}
}

/***************
 * Listing
 ***************/

func TestStore_ListActive(t *testing.T) {
	repo, _, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("empty store returns an empty list", func(t *testing.T) {
		got, err := repo.ListActive(ctx)
		if err != nil {
			t.Fatalf("ListActive() unexpected error: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("ListActive() = %#v, want empty non-nil slice", got)
		}
	})

	first := mustSave(t, repo, "Guybrush", "first http://a.io post")
	second := mustSave(t, repo, "LeChuck", "second")
	third := mustSave(t, repo, "Guybrush", "third")

	if err := repo.Discard(ctx, second.ID); err != nil {
		t.Fatalf("Discard() unexpected error: %v", err)
	}

	got, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() unexpected error: %v", err)
	}

	want := []Tweet{third, first}
	if len(got) != len(want) {
		t.Fatalf("ListActive() returned %d tweets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Text != want[i].Text {
			t.Errorf("ListActive()[%d] = %s %q, want %s %q", i, got[i].ID, got[i].Text, want[i].ID, want[i].Text)
		}
		if got[i].Discarded {
			t.Errorf("ListActive()[%d] is discarded", i)
		}
	}
}

func TestStore_ListDiscarded(t *testing.T) {
	repo, _, _ := newTestStore(t)
	ctx := context.Background()

	a := mustSave(t, repo, "Guybrush", "a")
	b := mustSave(t, repo, "Guybrush", "b https://b.io link")
	c := mustSave(t, repo, "LeChuck", "c")
	mustSave(t, repo, "Guybrush", "d")

	// Discard order decides the listing order since discarding refreshes the date.
	for _, id := range []uuid.UUID{b.ID, c.ID, a.ID} {
		if err := repo.Discard(ctx, id); err != nil {
			t.Fatalf("Discard() unexpected error: %v", err)
		}
	}

	got, err := repo.ListDiscarded(ctx, "Guybrush")
	if err != nil {
		t.Fatalf("ListDiscarded() unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListDiscarded() returned %d tweets, want 2", len(got))
	}
	if got[0].ID != a.ID || got[1].ID != b.ID {
		t.Errorf("ListDiscarded() order = [%s %s], want [%s %s]", got[0].ID, got[1].ID, a.ID, b.ID)
	}
	if got[1].Text != "b https://b.io link" {
		t.Errorf("links not reinserted: %q", got[1].Text)
	}
	for _, tw := range got {
		if !tw.Discarded || tw.Publisher != "Guybrush" {
			t.Errorf("unexpected tweet in discarded list: %+v", tw)
		}
	}

	none, err := repo.ListDiscarded(ctx, "Elaine")
	if err != nil {
		t.Fatalf("ListDiscarded() unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListDiscarded(Elaine) = %+v, want empty", none)
	}
}

/***************
 * Discard / Delete
 ***************/

func TestStore_Discard(t *testing.T) {
	t.Run("marks the tweet and refreshes its date", func(t *testing.T) {
		repo, _, _ := newTestStore(t)
		ctx := context.Background()

		saved := mustSave(t, repo, "Guybrush", "bye http://x.io now")
		if err := repo.Discard(ctx, saved.ID); err != nil {
			t.Fatalf("Discard() unexpected error: %v", err)
		}

		found, err := repo.FindByID(ctx, saved.ID)
		if err != nil || found == nil {
			t.Fatalf("FindByID() = %v, %v", found, err)
		}
		if !found.Discarded {
			t.Error("tweet not discarded")
		}
		if !found.Date.After(saved.Date) {
			t.Errorf("date = %v, want after %v", found.Date, saved.Date)
		}
		if found.Text != saved.Text {
			t.Errorf("text changed by discard: %q", found.Text)
		}
	})

	t.Run("unknown id is invalid and changes nothing", func(t *testing.T) {
		repo, _, _ := newTestStore(t)
		ctx := context.Background()

		saved := mustSave(t, repo, "Guybrush", "still here")

		err := repo.Discard(ctx, uuid.New())
		if errx.KindOf(err) != errx.Invalid {
			t.Fatalf("Discard() error kind = %v, want %v", errx.KindOf(err), errx.Invalid)
		}
		if !errors.Is(err, ErrInvalidID) {
			t.Errorf("error = %v, want ErrInvalidID", err)
		}

		found, err := repo.FindByID(ctx, saved.ID)
		if err != nil || found == nil || found.Discarded {
			t.Errorf("existing tweet affected: %+v, %v", found, err)
		}
	})
}

func TestStore_Delete(t *testing.T) {
	repo, backend, _ := newTestStore(t)
	ctx := context.Background()

	saved := mustSave(t, repo, "Guybrush", "gone http://a.io and https://b.io soon")

	if err := repo.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}

	found, err := repo.FindByID(ctx, saved.ID)
	if err != nil || found != nil {
		t.Errorf("FindByID() after delete = %+v, %v, want nil, nil", found, err)
	}

	links, err := backend.ListLinks(ctx, []uuid.UUID{saved.ID})
	if err != nil {
		t.Fatalf("ListLinks() unexpected error: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("links after delete = %+v, want none", links)
	}

	err = repo.Delete(ctx, saved.ID)
	if errx.KindOf(err) != errx.NotFound {
		t.Errorf("second Delete() error kind = %v, want %v", errx.KindOf(err), errx.NotFound)
	}
}

/***************
 * Backend failures
 ***************/

// failingStore is a db.Store whose every statement fails with err.
type failingStore struct {
	err error
}

func (f failingStore) InsertTweet(context.Context, db.InsertTweetParams) error         { return f.err }
func (f failingStore) UpdateTweetBody(context.Context, db.UpdateTweetBodyParams) error { return f.err }
func (f failingStore) InsertLink(context.Context, db.InsertLinkParams) error           { return f.err }
func (f failingStore) GetTweet(context.Context, uuid.UUID) (db.Tweet, error)           { return db.Tweet{}, f.err }
func (f failingStore) ListLinks(context.Context, []uuid.UUID) ([]db.Link, error)       { return nil, f.err }
func (f failingStore) ListActiveTweets(context.Context) ([]db.Tweet, error)            { return nil, f.err }
func (f failingStore) ListDiscardedTweets(context.Context, string) ([]db.Tweet, error) { return nil, f.err }
func (f failingStore) MarkTweetDiscarded(context.Context, db.MarkTweetDiscardedParams) (int64, error) {
	return 0, f.err
}
func (f failingStore) DeleteLinks(context.Context, uuid.UUID) (int64, error) { return 0, f.err }
func (f failingStore) DeleteTweet(context.Context, uuid.UUID) (int64, error) { return 0, f.err }
func (f failingStore) ExecTx(_ context.Context, fn func(db.Querier) error) error {
	return fn(f)
}
func (f failingStore) Ping(context.Context) error { return f.err }
func (f failingStore) Close() error               { return nil }

func TestStore_BackendFailures(t *testing.T) {
	boom := errors.New("connection reset by peer")
	repo := NewStore(failingStore{err: boom}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"Save", func() error { _, err := repo.Save(ctx, Tweet{Publisher: "p", Text: "t"}); return err }},
		{"FindByID", func() error { _, err := repo.FindByID(ctx, uuid.New()); return err }},
		{"ListActive", func() error { _, err := repo.ListActive(ctx); return err }},
		{"ListDiscarded", func() error { _, err := repo.ListDiscarded(ctx, "p"); return err }},
		{"Discard", func() error { return repo.Discard(ctx, uuid.New()) }},
		{"Delete", func() error { return repo.Delete(ctx, uuid.New()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if errx.KindOf(err) != errx.Unavailable {
				t.Errorf("error kind = %v, want %v (err = %v)", errx.KindOf(err), errx.Unavailable, err)
			}
			if !errors.Is(err, boom) {
				t.Errorf("error = %v, want %v in chain", err, boom)
			}
			if want := "tweet.store." + tt.name; errx.OpOf(err) != want {
				t.Errorf("OpOf(err) = %q, want %q", errx.OpOf(err), want)
			}
		})
	}
}

func TestStore_DateIsUTCAndTruncated(t *testing.T) {
	backend := openSQLite(t)
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2024, 5, 1, 14, 0, 0, 123456789, loc)
	repo := NewStore(backend, &StoreConfig{Clock: func() time.Time { return at }})

	saved := mustSave(t, repo, "Guybrush", "tick")

	want := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
	if !saved.Date.Equal(want) || saved.Date.Location() != time.UTC {
		t.Errorf("Date = %v, want %v", saved.Date, want)
	}

	found, err := repo.FindByID(context.Background(), saved.ID)
	if err != nil || found == nil {
		t.Fatalf("FindByID() = %v, %v", found, err)
	}
	if !found.Date.Equal(want) {
		t.Errorf("stored Date = %v, want %v", found.Date, want)
	}
}
