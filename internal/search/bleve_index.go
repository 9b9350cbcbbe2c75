package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
)

const (
	// TermTokenizerType is the registered type of the archive tokenizer.
	TermTokenizerType = "docarchive_terms"

	termTokenizerName = "archive_terms"
	termAnalyzerName  = "archive_analyzer"

	fieldDocID   = "doc_id"
	fieldContent = "content"

	// pageSize bounds each internal bleve request.
	pageSize = 1000
)

func init() {
	_ = registry.RegisterTokenizer(TermTokenizerType, termTokenizerConstructor)
}

// BleveIndex implements Index on Bleve v2 with one bleve document per fragment.
type BleveIndex struct {
	mu        sync.RWMutex
	index     bleve.Index
	path      string
	tokenizer *Tokenizer
	closed    bool
}

// Verify interface implementation at compile time
var _ Index = (*BleveIndex)(nil)

// bleveFragment is the stored shape of one fragment.
type bleveFragment struct {
	DocID   string `json:"doc_id"`
	Content string `json:"content"`
}

// validateIndexIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid or absent.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// NewBleveIndex opens or creates a bleve index at path.
// If path is empty, creates an in-memory index.
// A corrupted on-disk index is cleared and recreated empty; the archive
// rebuilds it from stored fragment text.
func NewBleveIndex(path string, cfg Config) (*BleveIndex, error) {
	indexMapping, err := createIndexMapping(cfg)
	if err != nil {
		return nil, errors.IndexFailure("create index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.IndexFailure("create index directory", err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("search_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.IndexFailure("clear corrupted index", removeErr)
			}
			slog.Info("search_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, run docarchive reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, errors.IndexFailure("open index", err)
	}

	return &BleveIndex{
		index:     idx,
		path:      path,
		tokenizer: NewTokenizer(cfg.MinTokenLength, cfg.StopWords),
	}, nil
}

// createIndexMapping maps doc_id as a keyword and content through the archive tokenizer.
func createIndexMapping(cfg Config) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomTokenizer(termTokenizerName, map[string]any{
		"type":       TermTokenizerType,
		"min_length": cfg.MinTokenLength,
		"stop_words": cfg.StopWords,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom tokenizer: %w", err)
	}

	// The tokenizer already case-folds and filters, so no token filters.
	err = indexMapping.AddCustomAnalyzer(termAnalyzerName, map[string]any{
		"type":      custom.Name,
		"tokenizer": termTokenizerName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	docIDField := bleve.NewKeywordFieldMapping()
	docIDField.Analyzer = keyword.Name
	docIDField.Store = false
	docIDField.IncludeInAll = false

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = termAnalyzerName
	contentField.Store = false
	contentField.IncludeTermVectors = true
	contentField.IncludeInAll = false

	fragmentMapping := bleve.NewDocumentMapping()
	fragmentMapping.AddFieldMappingsAt(fieldDocID, docIDField)
	fragmentMapping.AddFieldMappingsAt(fieldContent, contentField)

	indexMapping.DefaultMapping = fragmentMapping
	indexMapping.DefaultAnalyzer = termAnalyzerName
	return indexMapping, nil
}

// fragmentKey is the bleve document id of a fragment.
func fragmentKey(id docid.DocID, fragment int) string {
	return id.String() + "/" + strconv.Itoa(fragment)
}

// parseFragmentKey splits a bleve document id back into its parts.
func parseFragmentKey(key string) (docid.DocID, int, error) {
	rawID, rawFragment, ok := strings.Cut(key, "/")
	if !ok {
		return docid.DocID{}, 0, fmt.Errorf("malformed fragment key %q", key)
	}
	id, err := docid.Parse(rawID)
	if err != nil {
		return docid.DocID{}, 0, err
	}
	n, err := strconv.Atoi(rawFragment)
	if err != nil {
		return docid.DocID{}, 0, fmt.Errorf("malformed fragment key %q", key)
	}
	return id, n, nil
}

// IndexFragment replaces the postings of (id, fragment).
func (b *BleveIndex) IndexFragment(ctx context.Context, id docid.DocID, fragment int, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.IndexFailure("index fragment", fmt.Errorf("index is closed"))
	}

	doc := bleveFragment{DocID: id.String(), Content: text}
	if err := b.index.Index(fragmentKey(id, fragment), doc); err != nil {
		return errors.IndexFailure("index fragment", err)
	}
	return nil
}

// RemoveDocument deletes every fragment of id.
func (b *BleveIndex) RemoveDocument(ctx context.Context, id docid.DocID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.IndexFailure("remove document", fmt.Errorf("index is closed"))
	}

	q := bleve.NewTermQuery(id.String())
	q.SetField(fieldDocID)

	for {
		req := bleve.NewSearchRequestOptions(q, pageSize, 0, false)
		result, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return errors.IndexFailure("find document fragments", err)
		}
		if len(result.Hits) == 0 {
			return nil
		}

		batch := b.index.NewBatch()
		for _, hit := range result.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return errors.IndexFailure("delete document fragments", err)
		}
	}
}

// docAccumulator gathers fragment hits of one document.
type docAccumulator struct {
	terms     map[string]struct{}
	score     int
	fragments map[int]struct{}
}

// Search returns documents containing every query term.
// Bleve matches fragments disjunctively; the document-level conjunction
// is applied here.
func (b *BleveIndex) Search(ctx context.Context, queryStr string) ([]Hit, error) {
	terms := b.tokenizer.QueryTerms(queryStr)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errors.IndexFailure("search", fmt.Errorf("index is closed"))
	}

	disjuncts := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		tq := bleve.NewTermQuery(term)
		tq.SetField(fieldContent)
		disjuncts = append(disjuncts, tq)
	}
	q := bleve.NewDisjunctionQuery(disjuncts...)

	docs := make(map[docid.DocID]*docAccumulator)
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(q, pageSize, from, false)
		req.IncludeLocations = true
		req.SortBy([]string{"_id"})

		result, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, errors.IndexFailure("search", err)
		}

		for _, hit := range result.Hits {
			id, fragment, err := parseFragmentKey(hit.ID)
			if err != nil {
				slog.Warn("skipping malformed index entry", slog.String("key", hit.ID))
				continue
			}
			acc, ok := docs[id]
			if !ok {
				acc = &docAccumulator{
					terms:     make(map[string]struct{}),
					fragments: make(map[int]struct{}),
				}
				docs[id] = acc
			}
			for term, locations := range hit.Locations[fieldContent] {
				if len(locations) == 0 {
					continue
				}
				acc.terms[term] = struct{}{}
				acc.score += len(locations)
				acc.fragments[fragment] = struct{}{}
			}
		}

		if len(result.Hits) < pageSize {
			break
		}
	}

	hits := make([]Hit, 0, len(docs))
	for id, acc := range docs {
		if len(acc.terms) < len(terms) {
			continue
		}
		fragments := make([]int, 0, len(acc.fragments))
		for f := range acc.fragments {
			fragments = append(fragments, f)
		}
		sort.Ints(fragments)
		hits = append(hits, Hit{ID: id, Score: acc.score, Fragments: fragments})
	}
	sortHits(hits)
	return hits, nil
}

// Stats returns index statistics.
func (b *BleveIndex) Stats(ctx context.Context) (*IndexStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errors.IndexFailure("stats", fmt.Errorf("index is closed"))
	}

	fragments, err := b.index.DocCount()
	if err != nil {
		return nil, errors.IndexFailure("stats", err)
	}

	docs := make(map[string]struct{})
	q := bleve.NewMatchAllQuery()
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(q, pageSize, from, false)
		req.SortBy([]string{"_id"})
		result, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, errors.IndexFailure("stats", err)
		}
		for _, hit := range result.Hits {
			rawID, _, _ := strings.Cut(hit.ID, "/")
			docs[rawID] = struct{}{}
		}
		if len(result.Hits) < pageSize {
			break
		}
	}

	return &IndexStats{
		Backend:   string(BackendBleve),
		Documents: len(docs),
		Fragments: int(fragments),
	}, nil
}

// Close closes the index. Safe to call twice.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// termTokenizerConstructor builds the archive tokenizer from mapping config.
// Numbers arrive as float64 and lists as []any once a mapping is reloaded from disk.
func termTokenizerConstructor(config map[string]any, cache *registry.Cache) (analysis.Tokenizer, error) {
	minLength := 1
	switch v := config["min_length"].(type) {
	case int:
		minLength = v
	case float64:
		minLength = int(v)
	}

	var stopWords []string
	switch v := config["stop_words"].(type) {
	case []string:
		stopWords = v
	case []any:
		for _, w := range v {
			if s, ok := w.(string); ok {
				stopWords = append(stopWords, s)
			}
		}
	}

	return &bleveTermTokenizer{tokenizer: NewTokenizer(minLength, stopWords)}, nil
}

// bleveTermTokenizer adapts Tokenizer to analysis.Tokenizer.
type bleveTermTokenizer struct {
	tokenizer *Tokenizer
}

// Tokenize implements analysis.Tokenizer.
// Offsets refer to the case-folded input.
func (t *bleveTermTokenizer) Tokenize(input []byte) analysis.TokenStream {
	lower := strings.ToLower(string(input))
	spans := tokenRegex.FindAllStringIndex(lower, -1)

	result := make(analysis.TokenStream, 0, len(spans))
	pos := 1
	for _, span := range spans {
		word := lower[span[0]:span[1]]
		if !t.tokenizer.keep(word) {
			continue
		}
		result = append(result, &analysis.Token{
			Term:     []byte(word),
			Start:    span[0],
			End:      span[1],
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
	}
	return result
}
