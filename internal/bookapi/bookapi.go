// Package bookapi exposes the book catalogue as a GraphQL schema with its
// resolvers.
package bookapi

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/hanpama/bookgraph/internal/executor"
	"github.com/hanpama/bookgraph/internal/pending"
	"github.com/hanpama/bookgraph/internal/resolver"
	"github.com/hanpama/bookgraph/internal/schema"
	"github.com/hanpama/bookgraph/internal/store"
)

//go:embed schema.graphql
var SDL string

const buyLinkFormat = "https://www.amazon.com/s?k=%s&i=stripbooks-intl-ship"

// API resolves the catalogue schema against a store.
type API struct {
	store store.Store
}

func New(st store.Store) *API {
	return &API{store: st}
}

// Build parses SDL, registers the API resolvers and returns the annotated
// schema together with the runtime that serves it.
func Build(st store.Store, opts ...resolver.Option) (*schema.Schema, *resolver.Registry, error) {
	sch, err := schema.BuildFromSDL(SDL)
	if err != nil {
		return nil, nil, fmt.Errorf("build book schema: %w", err)
	}
	reg := resolver.NewRegistry(opts...)
	New(st).Register(reg)
	if err := reg.Annotate(sch); err != nil {
		return nil, nil, err
	}
	return sch, reg, nil
}

// Register installs the API resolvers. Other fields resolve from the store
// records' properties.
func (a *API) Register(r *resolver.Registry) {
	r.AsyncField("Query", "books", a.books).
		AsyncField("Query", "book", a.book).
		AsyncField("Book", "buyLink", a.buyLink).
		Batch("Book", "authors", a.authors).
		Batch("Book", "asyncAuthors", a.authors)
}

func (a *API) books(ctx context.Context, _ any, _ map[string]any) *pending.Computation[any] {
	return pending.Go(ctx, func(ctx context.Context) (any, error) {
		return a.store.Books(ctx)
	})
}

func (a *API) book(ctx context.Context, _ any, args map[string]any) *pending.Computation[any] {
	name, _ := args["name"].(string)
	return pending.Go(ctx, func(ctx context.Context) (any, error) {
		return a.store.Book(ctx, name)
	})
}

func (a *API) buyLink(ctx context.Context, source any, _ map[string]any) *pending.Computation[any] {
	b, err := asBook(source)
	if err != nil {
		return pending.Failed[any](err)
	}
	return pending.Go(ctx, func(context.Context) (any, error) {
		return BuyLink(b.Title), nil
	})
}

// BuyLink is the bookshop search URL for title.
func BuyLink(title string) string {
	return fmt.Sprintf(buyLinkFormat, strings.ReplaceAll(title, " ", "+"))
}

// authors looks up the authors of every parent book with one store call.
func (a *API) authors(ctx context.Context, sources []any, _ map[string]any) *pending.Computation[[]executor.AsyncResolveResult] {
	return pending.Go(ctx, func(ctx context.Context) ([]executor.AsyncResolveResult, error) {
		out := make([]executor.AsyncResolveResult, len(sources))
		var names []string
		books := make([]*store.Book, len(sources))
		for i, s := range sources {
			b, err := asBook(s)
			if err != nil {
				out[i].Error = err
				continue
			}
			books[i] = b
			names = append(names, b.Authors...)
		}

		found, err := a.store.Authors(ctx, names)
		if err != nil {
			return nil, err
		}

		next := 0
		for i, b := range books {
			if b == nil {
				continue
			}
			authors := make([]*store.Author, len(b.Authors))
			copy(authors, found[next:next+len(b.Authors)])
			next += len(b.Authors)
			out[i].Value = authors
		}
		return out, nil
	})
}

func asBook(source any) (*store.Book, error) {
	b, ok := source.(*store.Book)
	if !ok || b == nil {
		return nil, fmt.Errorf("expected *store.Book parent, got %T", source)
	}
	return b, nil
}
