package remote

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"phimstream/models"
)

// ErrNotAuthenticated is returned when a gateway operation that needs an
// account is called without one.
var ErrNotAuthenticated = errors.New("remote: not authenticated")

// ErrNotFound is returned when a referenced movie or entry does not exist.
var ErrNotFound = errors.New("remote: not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// GatewayInterface is the hosted persistence surface. Library and history
// rows live in Postgres keyed by account, with catalog titles deduplicated
// into a shared movies table.
type GatewayInterface interface {
	SyncMovie(ctx context.Context, item models.CatalogItem) (string, error)
	AddToLibrary(ctx context.Context, userID string, item models.CatalogItem) error
	RemoveFromLibrary(ctx context.Context, userID, slug string) error
	ListLibrary(ctx context.Context, userID string) ([]models.RemoteSavedEntry, error)
	IsSaved(ctx context.Context, userID, slug string) (bool, error)
	AddToHistory(ctx context.Context, userID string, item models.CatalogItem, episodeName string) error
	RemoveFromHistory(ctx context.Context, userID, entryID string) error
	ListHistory(ctx context.Context, userID string, page, pageSize int) ([]models.RemoteHistoryEntry, int, error)
	Close() error
}

// Gateway talks to the hosted Postgres store.
type Gateway struct {
	db *sql.DB
}

var _ GatewayInterface = (*Gateway)(nil)

// Open connects to the database and applies pending migrations.
func Open(databaseURL string) (*Gateway, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Printf("[remote] connected, migrations up to date")
	return &Gateway{db: db}, nil
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// SyncMovie upserts a catalog title by slug and returns its stable row ID.
// Re-syncing the same slug refreshes the stored payload without creating a
// second row.
func (g *Gateway) SyncMovie(ctx context.Context, item models.CatalogItem) (string, error) {
	if item.Slug == "" {
		return "", fmt.Errorf("sync movie: empty slug")
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("sync movie: %w", err)
	}
	var id string
	err = g.db.QueryRowContext(ctx, `
		INSERT INTO movies (id, slug, name, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, payload = EXCLUDED.payload, updated_at = now()
		RETURNING id`,
		uuid.NewString(), item.Slug, item.Name, payload).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("sync movie %q: %w", item.Slug, err)
	}
	return id, nil
}

// AddToLibrary saves a title for an account. Saving an already saved title
// is a no-op.
func (g *Gateway) AddToLibrary(ctx context.Context, userID string, item models.CatalogItem) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	movieID, err := g.SyncMovie(ctx, item)
	if err != nil {
		return err
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO library (id, user_id, movie_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, movie_id) DO NOTHING`,
		uuid.NewString(), userID, movieID)
	if err != nil {
		return fmt.Errorf("add to library: %w", err)
	}
	return nil
}

// RemoveFromLibrary drops a saved title by slug.
func (g *Gateway) RemoveFromLibrary(ctx context.Context, userID, slug string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	res, err := g.db.ExecContext(ctx, `
		DELETE FROM library
		WHERE user_id = $1
		  AND movie_id = (SELECT id FROM movies WHERE slug = $2)`,
		userID, slug)
	if err != nil {
		return fmt.Errorf("remove from library: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLibrary returns the account's saved titles, most recently saved first.
func (g *Gateway) ListLibrary(ctx context.Context, userID string) ([]models.RemoteSavedEntry, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT l.id, l.movie_id, l.saved_at, m.payload
		FROM library l
		JOIN movies m ON m.id = l.movie_id
		WHERE l.user_id = $1
		ORDER BY l.saved_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list library: %w", err)
	}
	defer rows.Close()

	entries := []models.RemoteSavedEntry{}
	for rows.Next() {
		var e models.RemoteSavedEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.MovieID, &e.SavedAt, &payload); err != nil {
			return nil, fmt.Errorf("list library: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Movie); err != nil {
			log.Printf("[remote] skipping unreadable movie payload %s: %v", e.MovieID, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// IsSaved reports whether the account has the slug in its library.
func (g *Gateway) IsSaved(ctx context.Context, userID, slug string) (bool, error) {
	if userID == "" {
		return false, ErrNotAuthenticated
	}
	var saved bool
	err := g.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM library l
			JOIN movies m ON m.id = l.movie_id
			WHERE l.user_id = $1 AND m.slug = $2
		)`, userID, slug).Scan(&saved)
	if err != nil {
		return false, fmt.Errorf("is saved: %w", err)
	}
	return saved, nil
}

// AddToHistory records a watch event. One row is kept per account and
// title; rewatching refreshes the timestamp and episode name instead of
// inserting a duplicate.
func (g *Gateway) AddToHistory(ctx context.Context, userID string, item models.CatalogItem, episodeName string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	movieID, err := g.SyncMovie(ctx, item)
	if err != nil {
		return err
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO watch_history (id, user_id, movie_id, episode_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, movie_id) DO UPDATE
		SET episode_name = EXCLUDED.episode_name, watched_at = now()`,
		uuid.NewString(), userID, movieID, episodeName)
	if err != nil {
		return fmt.Errorf("add to history: %w", err)
	}
	return nil
}

// RemoveFromHistory deletes a single history row owned by the account.
func (g *Gateway) RemoveFromHistory(ctx context.Context, userID, entryID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	res, err := g.db.ExecContext(ctx, `
		DELETE FROM watch_history WHERE id = $1 AND user_id = $2`,
		entryID, userID)
	if err != nil {
		return fmt.Errorf("remove from history: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHistory returns one page of the account's watch history, most recent
// first, along with the total row count.
func (g *Gateway) ListHistory(ctx context.Context, userID string, page, pageSize int) ([]models.RemoteHistoryEntry, int, error) {
	if userID == "" {
		return nil, 0, ErrNotAuthenticated
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	err := g.db.QueryRowContext(ctx,
		`SELECT count(*) FROM watch_history WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}

	rows, err := g.db.QueryContext(ctx, `
		SELECT h.id, h.movie_id, h.episode_name, h.watched_at, m.payload
		FROM watch_history h
		JOIN movies m ON m.id = h.movie_id
		WHERE h.user_id = $1
		ORDER BY h.watched_at DESC
		LIMIT $2 OFFSET $3`,
		userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := []models.RemoteHistoryEntry{}
	for rows.Next() {
		var e models.RemoteHistoryEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.MovieID, &e.EpisodeName, &e.WatchedAt, &payload); err != nil {
			return nil, 0, fmt.Errorf("list history: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Movie); err != nil {
			log.Printf("[remote] skipping unreadable movie payload %s: %v", e.MovieID, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
