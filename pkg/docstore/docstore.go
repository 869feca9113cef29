// Package docstore provides the SQLite-backed document store the collector
// reads its reference corpus from. The schema is the slice of the blog's data
// model whose text can embed asset references: posts carry a content body and
// a dedicated cover field, pages carry a content body.
package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages document persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the document database and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL DEFAULT '',
			cover TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Post is a blog post; its content and cover may reference assets.
type Post struct {
	ID      int64
	Title   string
	Cover   string
	Content string
}

// Page is a standalone page; its content may reference assets.
type Page struct {
	ID      int64
	Title   string
	Content string
}

// CreatePost inserts a post and returns its id.
func (s *Store) CreatePost(ctx context.Context, title, cover, content string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (title, cover, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		title, cover, content, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return res.LastInsertId()
}

// UpdatePost rewrites a post's cover and content.
func (s *Store) UpdatePost(ctx context.Context, id int64, cover, content string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE posts SET cover = ?, content = ?, updated_at = ? WHERE id = ?`,
		cover, content, now, id,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

// DeletePost removes a post.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// CreatePage inserts a page and returns its id.
func (s *Store) CreatePage(ctx context.Context, title, content string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (title, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		title, content, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert page: %w", err)
	}
	return res.LastInsertId()
}

// ReferenceTexts returns every text field that may embed asset references:
// each post's content and cover, and each page's content. This is the
// collector's document corpus.
func (s *Store) ReferenceTexts(ctx context.Context) ([]string, error) {
	var texts []string

	rows, err := s.db.QueryContext(ctx, `SELECT cover, content FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cover, content string
		if err := rows.Scan(&cover, &content); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		texts = append(texts, cover, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	pageRows, err := s.db.QueryContext(ctx, `SELECT content FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer func() { _ = pageRows.Close() }()

	for pageRows.Next() {
		var content string
		if err := pageRows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		texts = append(texts, content)
	}
	if err := pageRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}

	return texts, nil
}
