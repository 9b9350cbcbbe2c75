package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// tokenRegex matches runs of letters and digits in any script.
// Everything else, punctuation and underscores included, separates tokens.
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenizer normalizes text into index terms.
// Indexing and querying must share one Tokenizer so both sides agree on terms.
type Tokenizer struct {
	minLength int
	stopWords map[string]struct{}
}

// NewTokenizer creates a tokenizer that drops tokens shorter than minLength
// runes and any token in stopWords.
func NewTokenizer(minLength int, stopWords []string) *Tokenizer {
	if minLength < 1 {
		minLength = 1
	}
	return &Tokenizer{
		minLength: minLength,
		stopWords: BuildStopWordMap(stopWords),
	}
}

// Tokenize case-folds text and splits it into terms, in order of appearance.
func (t *Tokenizer) Tokenize(text string) []string {
	words := tokenRegex.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if t.keep(w) {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// keep reports whether a lowercased word survives the length and stop word filters.
func (t *Tokenizer) keep(w string) bool {
	if utf8.RuneCountInString(w) < t.minLength {
		return false
	}
	_, stop := t.stopWords[w]
	return !stop
}

// TermFrequencies counts occurrences of each term in text.
func (t *Tokenizer) TermFrequencies(text string) map[string]int {
	tf := make(map[string]int)
	for _, tok := range t.Tokenize(text) {
		tf[tok]++
	}
	return tf
}

// QueryTerms tokenizes a query and removes duplicate terms, keeping first-seen order.
func (t *Tokenizer) QueryTerms(query string) []string {
	tokens := t.Tokenize(query)
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
