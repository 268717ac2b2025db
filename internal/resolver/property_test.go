package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ISBN      string `graphql:"isbn"`
	Title     string
	Published time.Time `graphql:"published"`
	Authors   []string  `graphql:"authorNames"`
	hidden    string
}

func TestProperty(t *testing.T) {
	rec := &record{ISBN: "0-571-05686-5", Title: "Lord of the Flies", Authors: []string{"William Golding"}, hidden: "x"}

	tests := []struct {
		name   string
		source any
		field  string
		want   any
	}{
		{"tag", rec, "isbn", "0-571-05686-5"},
		{"renamed by tag", rec, "authorNames", []string{"William Golding"}},
		{"case-insensitive name", rec, "title", "Lord of the Flies"},
		{"struct value", *rec, "title", "Lord of the Flies"},
		{"map", map[string]any{"title": "Animal Farm"}, "title", "Animal Farm"},
		{"missing map key", map[string]any{}, "title", nil},
		{"nil source", nil, "title", nil},
		{"nil pointer", (*record)(nil), "title", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Property(tt.source, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPropertyErrors(t *testing.T) {
	_, err := Property(record{}, "hidden")
	assert.Error(t, err)

	_, err = Property(record{}, "Authors")
	assert.Error(t, err, "tagged fields are only reachable through their tag")

	_, err = Property(42, "title")
	assert.Error(t, err)
}

func TestSerializeLeafValue(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	got, err := r.SerializeLeafValue(ctx, "Date", time.Date(1954, time.September, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1954-09-17", got)

	got, err = r.SerializeLeafValue(ctx, "Date", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.SerializeLeafValue(ctx, "Int", int64(7))
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	_, err = r.SerializeLeafValue(ctx, "Int", int64(1)<<40)
	assert.Error(t, err)

	_, err = r.SerializeLeafValue(ctx, "Boolean", "yes")
	assert.Error(t, err)

	got, err = r.SerializeLeafValue(ctx, "Cover", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "cG5n", got)

	r.Scalar("Upper", func(v any) (any, error) { return "UP", nil })
	got, err = r.SerializeLeafValue(ctx, "Upper", "x")
	require.NoError(t, err)
	assert.Equal(t, "UP", got)
}
