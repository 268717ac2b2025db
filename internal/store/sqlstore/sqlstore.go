// Package sqlstore implements store.Store on a libsql database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/hanpama/bookgraph/internal/gqlerr"
	"github.com/hanpama/bookgraph/internal/store"
)

const dateLayout = "2006-01-02"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
        title TEXT PRIMARY KEY,
        isbn TEXT NOT NULL,
        published TEXT
    )`,
	`CREATE TABLE IF NOT EXISTS authors (
        name TEXT PRIMARY KEY,
        born_name TEXT,
        birth_date TEXT,
        birth_place TEXT
    )`,
	`CREATE TABLE IF NOT EXISTS book_authors (
        book_title TEXT NOT NULL,
        author_name TEXT NOT NULL,
        position INTEGER NOT NULL,
        PRIMARY KEY (book_title, position),
        FOREIGN KEY (book_title) REFERENCES books(title)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_book_authors_title ON book_authors(book_title)`,
}

// Store reads books and authors from libsql. Load order is rowid order.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to url ("file:./books.db" or a remote libsql URL) and creates
// the tables when missing. authToken is appended for remote URLs only.
func Open(ctx context.Context, url, authToken string) (*Store, error) {
	dsn := url
	if !strings.HasPrefix(url, "file:") && authToken != "" {
		dsn += "?authToken=" + authToken
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql %s: %w", url, err)
	}
	s := &Store{db: db}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback()
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }

// Seed replaces the stored records with books and authors.
func (s *Store) Seed(ctx context.Context, books []*store.Book, authors []*store.Author) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM book_authors`, `DELETE FROM books`, `DELETE FROM authors`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear tables: %w", err)
		}
	}
	for _, b := range books {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO books (title, isbn, published) VALUES (?, ?, ?)`,
			b.Title, b.ISBN, formatDate(b.Published)); err != nil {
			return fmt.Errorf("insert book %q: %w", b.Title, err)
		}
		for i, name := range b.Authors {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO book_authors (book_title, author_name, position) VALUES (?, ?, ?)`,
				b.Title, name, i); err != nil {
				return fmt.Errorf("insert author link %q -> %q: %w", b.Title, name, err)
			}
		}
	}
	for _, a := range authors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO authors (name, born_name, birth_date, birth_place) VALUES (?, ?, ?, ?)`,
			a.Name, a.BornName, formatDate(a.BirthDate), a.BirthPlace); err != nil {
			return fmt.Errorf("insert author %q: %w", a.Name, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Books(ctx context.Context) ([]*store.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title, isbn, published FROM books ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*store.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	if err := s.attachAuthors(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

func (s *Store) Book(ctx context.Context, title string) (*store.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT title, isbn, published FROM books WHERE title = ?`, title)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gqlerr.NotFound("book", title)
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachAuthors(ctx, []*store.Book{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) Authors(ctx context.Context, names []string) ([]*store.Author, error) {
	out := make([]*store.Author, len(names))
	if len(names) == 0 {
		return out, nil
	}
	placeholders, args := inClause(names)
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, born_name, birth_date, birth_place FROM authors WHERE name IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*store.Author, len(names))
	for rows.Next() {
		var (
			a                    store.Author
			bornName, birthPlace sql.NullString
			birthDate            any
		)
		if err := rows.Scan(&a.Name, &bornName, &birthDate, &birthPlace); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		a.BornName = bornName.String
		a.BirthPlace = birthPlace.String
		if a.BirthDate, err = parseDate(birthDate); err != nil {
			return nil, fmt.Errorf("author %q birth date: %w", a.Name, err)
		}
		byName[a.Name] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authors: %w", err)
	}
	for i, name := range names {
		out[i] = byName[name]
	}
	return out, nil
}

func (s *Store) attachAuthors(ctx context.Context, books []*store.Book) error {
	if len(books) == 0 {
		return nil
	}
	titles := make([]string, len(books))
	byTitle := make(map[string]*store.Book, len(books))
	for i, b := range books {
		titles[i] = b.Title
		byTitle[b.Title] = b
		b.Authors = []string{}
	}
	placeholders, args := inClause(titles)
	rows, err := s.db.QueryContext(ctx,
		`SELECT book_title, author_name FROM book_authors WHERE book_title IN (`+placeholders+`) ORDER BY book_title, position`, args...)
	if err != nil {
		return fmt.Errorf("query book authors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var title, name string
		if err := rows.Scan(&title, &name); err != nil {
			return fmt.Errorf("scan book author: %w", err)
		}
		if b := byTitle[title]; b != nil {
			b.Authors = append(b.Authors, name)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (*store.Book, error) {
	var (
		b         store.Book
		published any
	)
	if err := row.Scan(&b.Title, &b.ISBN, &published); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan book: %w", err)
	}
	var err error
	if b.Published, err = parseDate(published); err != nil {
		return nil, fmt.Errorf("book %q published date: %w", b.Title, err)
	}
	return &b, nil
}

func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(values)), ","), args
}

func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

// parseDate reads a DATE column. libsql hands a date-shaped TEXT back as a
// time.Time or as an RFC 3339 string depending on the column's declared type.
func parseDate(v any) (time.Time, error) {
	var s string
	switch v := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return dateOf(v), nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %v (%T)", v, v)
	}
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return dateOf(t), nil
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
