// Package store holds the book and author records the API resolves against.
// Records are loaded once and never mutated afterwards, so reads need no locks.
package store

import (
	"context"
	"time"

	"github.com/hanpama/bookgraph/internal/gqlerr"
)

// Book is a published title. Authors holds author names, which key into the
// author records.
type Book struct {
	ISBN      string    `graphql:"isbn"`
	Title     string    `graphql:"title"`
	Published time.Time `graphql:"published"`
	Authors   []string  `graphql:"authorNames"`
}

type Author struct {
	Name       string    `graphql:"name"`
	BornName   string    `graphql:"bornName"`
	BirthDate  time.Time `graphql:"birthDate"`
	BirthPlace string    `graphql:"birthPlace"`
}

// Store is the read side the resolvers use.
type Store interface {
	// Books returns every book in load order.
	Books(ctx context.Context) ([]*Book, error)
	// Book returns the book with the given title or an error wrapping
	// gqlerr.ErrNotFound.
	Book(ctx context.Context, title string) (*Book, error)
	// Authors looks up many authors at once. The result has one slot per name,
	// in order; unknown names leave a nil slot.
	Authors(ctx context.Context, names []string) ([]*Author, error)
}

// Memory is an immutable in-process Store.
type Memory struct {
	books       []*Book
	booksByName map[string]*Book
	authors     map[string]*Author
}

var _ Store = (*Memory)(nil)

// NewMemory copies books and authors into a new store. Later books with a
// duplicate title replace earlier ones in place.
func NewMemory(books []*Book, authors []*Author) *Memory {
	m := &Memory{
		booksByName: make(map[string]*Book, len(books)),
		authors:     make(map[string]*Author, len(authors)),
	}
	for _, b := range books {
		cp := *b
		cp.Authors = append([]string(nil), b.Authors...)
		if _, dup := m.booksByName[cp.Title]; dup {
			for i, existing := range m.books {
				if existing.Title == cp.Title {
					m.books[i] = &cp
				}
			}
		} else {
			m.books = append(m.books, &cp)
		}
		m.booksByName[cp.Title] = &cp
	}
	for _, a := range authors {
		cp := *a
		m.authors[cp.Name] = &cp
	}
	return m
}

func (m *Memory) Books(ctx context.Context) ([]*Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]*Book(nil), m.books...), nil
}

func (m *Memory) Book(ctx context.Context, title string) (*Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := m.booksByName[title]
	if !ok {
		return nil, gqlerr.NotFound("book", title)
	}
	return b, nil
}

func (m *Memory) Authors(ctx context.Context, names []string) ([]*Author, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*Author, len(names))
	for i, name := range names {
		out[i] = m.authors[name]
	}
	return out, nil
}
