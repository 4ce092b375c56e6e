package parser

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/post-search/pkg/errors"
)

const (
	DefaultLimit   = 10
	MaxQueryLength = 512
)

// Query is a keyword search request. A nil BoardID searches every board.
type Query struct {
	Text    string `json:"query"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	BoardID *int64 `json:"board_id,omitempty"`
}

// NewQuery returns a query for text with the default limit and offset.
func NewQuery(text string) Query {
	return Query{Text: text, Limit: DefaultLimit}
}

// ForBoard returns a copy of q restricted to boardID.
func (q Query) ForBoard(boardID int64) Query {
	q.BoardID = &boardID
	return q
}

// Validate rejects queries that cannot be evaluated. It never coerces.
func (q Query) Validate() error {
	if q.Limit < 0 {
		return apperrors.Invalidf("limit must not be negative, got %d", q.Limit)
	}
	if q.Offset < 0 {
		return apperrors.Invalidf("offset must not be negative, got %d", q.Offset)
	}
	if !utf8.ValidString(q.Text) {
		return apperrors.Invalidf("query is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(q.Text); n > MaxQueryLength {
		return apperrors.Invalidf("query is %d characters, maximum is %d", n, MaxQueryLength)
	}
	return nil
}

// QueryPlan holds the distinct terms of a query in first-appearance order.
type QueryPlan struct {
	RawQuery string
	Terms    []string
}

// Parse tokenizes text with tok and removes repeated terms.
func Parse(text string, tok *tokenizer.Tokenizer) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: text,
		Terms:    make([]string, 0),
	}
	if strings.TrimSpace(text) == "" {
		return plan
	}
	seen := make(map[string]struct{})
	for _, term := range tok.ExtractWords(text) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		plan.Terms = append(plan.Terms, term)
	}
	return plan
}

// Normalized is the order-independent form of the plan. Queries with the
// same normalized form match the same posts.
func (p *QueryPlan) Normalized() string {
	terms := make([]string, len(p.Terms))
	copy(terms, p.Terms)
	sort.Strings(terms)
	return strings.Join(terms, " ")
}
