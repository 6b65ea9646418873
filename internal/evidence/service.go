package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/veridex/veridex/internal/cache"
)

// ErrNoResults means the search completed but found nothing. It is distinct
// from transport errors so the research stage can tell "nothing found" from
// "couldn't reach source".
var ErrNoResults = errors.New("search returned no results")

// SearchResult is one hit from the search collaborator
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Document is fetched, extracted source text
type Document struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Text        string `json:"text"`
	ContentType string `json:"content_type,omitempty"`
}

// Searcher is the search collaborator contract (implementations are external)
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Fetcher is the document-retrieval collaborator contract
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

// Service wraps search + fetch + extraction into one gather operation,
// with response caching in front of both collaborators.
type Service struct {
	searcher   Searcher
	fetcher    Fetcher
	cache      cache.Cache
	cacheTTL   time.Duration
	maxPerCall int
}

// NewService creates an evidence service. cache may be nil to disable caching.
func NewService(searcher Searcher, fetcher Fetcher, c cache.Cache, cacheTTL time.Duration) *Service {
	return &Service{
		searcher:   searcher,
		fetcher:    fetcher,
		cache:      c,
		cacheTTL:   cacheTTL,
		maxPerCall: 3,
	}
}

// Gather runs one query through search and fetches the top hits.
// Individual fetch failures are skipped (the hit's snippet still counts as
// minimal text); only a failed search fails the whole call.
func (s *Service) Gather(ctx context.Context, query string) ([]Document, error) {
	results, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	var docs []Document
	for i, hit := range results {
		if i >= s.maxPerCall {
			break
		}
		doc, err := s.fetch(ctx, hit.URL)
		if err != nil {
			// Degrade to the search snippet rather than dropping the source
			if hit.Snippet != "" {
				docs = append(docs, Document{URL: hit.URL, Title: hit.Title, Text: hit.Snippet})
			}
			continue
		}
		if doc.Title == "" {
			doc.Title = hit.Title
		}
		docs = append(docs, *doc)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("gather %q: all %d fetches failed", query, len(results))
	}
	return docs, nil
}

func (s *Service) search(ctx context.Context, query string) ([]SearchResult, error) {
	key := cache.Key("search:" + query)
	if s.cache != nil {
		if raw, found := s.cache.Get(key); found {
			var cached []SearchResult
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	results, err := s.searcher.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(results); err == nil {
			_ = s.cache.Set(key, raw, s.cacheTTL)
		}
	}
	return results, nil
}

func (s *Service) fetch(ctx context.Context, url string) (*Document, error) {
	key := cache.Key("fetch:" + url)
	if s.cache != nil {
		if raw, found := s.cache.Get(key); found {
			var cached Document
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	doc, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(doc); err == nil {
			_ = s.cache.Set(key, raw, s.cacheTTL)
		}
	}
	return doc, nil
}
