package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Page is a cached fetch result. A failed fetch is cached too so a run never
// asks the same URL twice.
type Page struct {
	URL   string
	Final string
	Body  []byte
	Err   error
}

// FetchFunc loads a page that is not cached yet
type FetchFunc func(ctx context.Context, url string) (final string, body []byte, err error)

// PageStore is a run-scoped, concurrency-safe page cache
type PageStore struct {
	pages map[string]*Page
	mu    sync.RWMutex
	group singleflight.Group
}

func New() *PageStore {
	return &PageStore{
		pages: make(map[string]*Page),
	}
}

func (s *PageStore) Get(url string) (*Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, exists := s.pages[url]
	return page, exists
}

func (s *PageStore) Set(url string, page *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = page
}

// Load returns the cached page for url, fetching it once if needed. Concurrent
// callers for the same url share one fetch.
func (s *PageStore) Load(ctx context.Context, url string, fetch FetchFunc) *Page {
	if page, ok := s.Get(url); ok {
		return page
	}
	v, _, _ := s.group.Do(url, func() (any, error) {
		if page, ok := s.Get(url); ok {
			return page, nil
		}
		final, body, err := fetch(ctx, url)
		page := &Page{URL: url, Final: final, Body: body, Err: err}
		s.Set(url, page)
		return page, nil
	})
	return v.(*Page)
}

func (s *PageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}
