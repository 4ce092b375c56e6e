package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/post-search/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		terms      []string
		normalized string
	}{
		{"empty", "", []string{}, ""},
		{"blank", "   ", []string{}, ""},
		{"stop words only", "the and to", []string{}, ""},
		{"single term", "Community", []string{"community"}, "community"},
		{"multi term keeps order", "posts guide", []string{"posts", "guide"}, "guide posts"},
		{"duplicates removed", "app APP login app", []string{"app", "login"}, "app login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Parse(tt.query, tokenizer.Default())
			assert.Equal(t, tt.query, plan.RawQuery)
			assert.Equal(t, tt.terms, plan.Terms)
			assert.Equal(t, tt.normalized, plan.Normalized())
		})
	}
}

func TestNormalized_OrderIndependent(t *testing.T) {
	a := Parse("Guide posts", tokenizer.Default())
	b := Parse("posts, guide!", tokenizer.Default())
	assert.Equal(t, a.Normalized(), b.Normalized())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"defaults", NewQuery("app"), false},
		{"zero limit", Query{Text: "app", Limit: 0}, false},
		{"negative limit", Query{Text: "app", Limit: -1}, true},
		{"negative offset", Query{Text: "app", Limit: 10, Offset: -5}, true},
		{"invalid utf8", Query{Text: "\xff\xfe", Limit: 10}, true},
		{"too long", Query{Text: strings.Repeat("a", MaxQueryLength+1), Limit: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestForBoard(t *testing.T) {
	q := NewQuery("app")
	scoped := q.ForBoard(3)

	assert.Nil(t, q.BoardID)
	if assert.NotNil(t, scoped.BoardID) {
		assert.Equal(t, int64(3), *scoped.BoardID)
	}
	assert.Equal(t, DefaultLimit, scoped.Limit)
}
