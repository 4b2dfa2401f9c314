package catalog

import (
	"context"
	"fmt"
	"sync"
)

// Page is one page of catalog results. TotalPages is authoritative only on
// page 1; later pages may repeat or omit it.
type Page struct {
	Number     int
	TotalPages int
	Products   []ProductSnapshot
}

// Source produces catalog pages. Pages are numbered from 1.
type Source interface {
	FetchPage(ctx context.Context, page int) (Page, error)
}

// StaticSource serves a fixed set of pages from memory. Individual pages can
// be made to fail, which makes it useful for dry runs and tests.
type StaticSource struct {
	mu       sync.Mutex
	pages    [][]ProductSnapshot
	failures map[int]error
	calls    []int
}

// NewStaticSource creates a source whose page n returns pages[n-1].
func NewStaticSource(pages ...[]ProductSnapshot) *StaticSource {
	return &StaticSource{pages: pages, failures: make(map[int]error)}
}

// FailPage makes every fetch of page n return err.
func (s *StaticSource) FailPage(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[n] = err
}

// FetchPage implements Source.
func (s *StaticSource) FetchPage(ctx context.Context, page int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, page)

	if err, ok := s.failures[page]; ok {
		return Page{}, err
	}
	if page < 1 || page > len(s.pages) {
		return Page{}, fmt.Errorf("page %d out of range (1..%d)", page, len(s.pages))
	}

	products := make([]ProductSnapshot, len(s.pages[page-1]))
	copy(products, s.pages[page-1])
	return Page{Number: page, TotalPages: len(s.pages), Products: products}, nil
}

// Calls returns the page numbers requested so far, in order.
func (s *StaticSource) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.calls))
	copy(out, s.calls)
	return out
}
