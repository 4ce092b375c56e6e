// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input, replaces everything that is not a letter of an
// allowed script, a digit or whitespace with a space, splits on whitespace
// and removes short terms and stop-words.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultStopWords combines common English function words with Korean
// particles and function words.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "were", "will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where", "who", "which", "their",
	"if", "do", "not", "no", "so", "can",
	"이", "그", "저", "것", "수", "등", "및", "의", "가", "을", "를",
	"은", "는", "에", "와", "과", "도", "로", "으로", "에서", "에게",
	"하다", "있다", "되다", "그리고", "그러나", "하지만", "또는", "이런", "저런",
}

// DefaultScripts are the alphabets whose letters survive normalisation.
var DefaultScripts = []*unicode.RangeTable{unicode.Latin, unicode.Hangul}

const defaultMinTermLength = 2

// Config controls which letters are kept and which terms are dropped.
// Zero values fall back to the defaults above.
type Config struct {
	StopWords     []string
	Scripts       []*unicode.RangeTable
	MinTermLength int
}

// ScriptsByName resolves Unicode script names such as "Latin" or "Hangul"
// to their range tables.
func ScriptsByName(names []string) ([]*unicode.RangeTable, error) {
	tables := make([]*unicode.RangeTable, 0, len(names))
	for _, name := range names {
		table, ok := unicode.Scripts[name]
		if !ok {
			return nil, fmt.Errorf("unknown unicode script %q", name)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// Tokenizer turns raw text into index terms. It is immutable after New and
// safe for concurrent use.
type Tokenizer struct {
	stopWords map[string]struct{}
	scripts   []*unicode.RangeTable
	minLen    int
}

// New builds a Tokenizer from cfg.
func New(cfg Config) *Tokenizer {
	words := cfg.StopWords
	if words == nil {
		words = DefaultStopWords
	}
	scripts := cfg.Scripts
	if len(scripts) == 0 {
		scripts = DefaultScripts
	}
	minLen := cfg.MinTermLength
	if minLen <= 0 {
		minLen = defaultMinTermLength
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{
		stopWords: stop,
		scripts:   scripts,
		minLen:    minLen,
	}
}

var defaultTokenizer = New(Config{})

// Default returns the shared tokenizer built from the default configuration.
func Default() *Tokenizer {
	return defaultTokenizer
}

// ExtractWords tokenizes text with the default configuration.
func ExtractWords(text string) []string {
	return defaultTokenizer.ExtractWords(text)
}

// ExtractWords returns the terms of text in order of appearance. Repeated
// terms are kept.
func (t *Tokenizer) ExtractWords(text string) []string {
	if text == "" {
		return []string{}
	}
	normalized := strings.Map(t.normalizeRune, strings.ToLower(text))
	words := strings.Fields(normalized)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < t.minLen {
			continue
		}
		if t.IsStopWord(word) {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// IsStopWord reports whether word is in the configured stop-word set.
func (t *Tokenizer) IsStopWord(word string) bool {
	_, ok := t.stopWords[word]
	return ok
}

func (t *Tokenizer) normalizeRune(r rune) rune {
	switch {
	case unicode.IsSpace(r), unicode.IsDigit(r):
		return r
	case unicode.IsLetter(r) && unicode.In(r, t.scripts...):
		return r
	default:
		return ' '
	}
}
