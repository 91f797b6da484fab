package ledger

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// keySet is the storage behind one side of the memory ledger.
type keySet interface {
	Contains(key string) bool
	Add(key string)
	Len() int
}

type mapSet map[string]struct{}

func (s mapSet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

func (s mapSet) Add(key string) { s[key] = struct{}{} }

func (s mapSet) Len() int { return len(s) }

type lruSet struct {
	cache *lru.Cache[string, struct{}]
}

func (s lruSet) Contains(key string) bool { return s.cache.Contains(key) }

func (s lruSet) Add(key string) { s.cache.Add(key, struct{}{}) }

func (s lruSet) Len() int { return s.cache.Len() }

// Memory is a process-lifetime ledger. With maxEntries == 0 both sets grow
// without bound; otherwise each set keeps only the maxEntries most recently
// recorded keys, and an evicted link may be delivered again.
type Memory struct {
	mu     sync.Mutex
	topics keySet
	links  keySet
}

// NewMemory creates an in-memory ledger.
func NewMemory(maxEntries int) (*Memory, error) {
	if maxEntries < 0 {
		return nil, fmt.Errorf("max entries cannot be negative")
	}
	if maxEntries == 0 {
		return &Memory{topics: mapSet{}, links: mapSet{}}, nil
	}

	topics, err := lru.New[string, struct{}](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create topic cache: %w", err)
	}
	links, err := lru.New[string, struct{}](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create link cache: %w", err)
	}
	return &Memory{topics: lruSet{topics}, links: lruSet{links}}, nil
}

func (m *Memory) IsNewFile(_ context.Context, link string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.links.Contains(link), nil
}

func (m *Memory) IsSeenTopic(_ context.Context, topicURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topics.Contains(topicURL), nil
}

func (m *Memory) RecordDelivered(_ context.Context, link string) error {
	m.mu.Lock()
	m.links.Add(link)
	m.mu.Unlock()
	return nil
}

func (m *Memory) RecordSeenTopic(_ context.Context, topicURL string) error {
	m.mu.Lock()
	m.topics.Add(topicURL)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Stats(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{SeenTopics: m.topics.Len(), PostedLinks: m.links.Len()}, nil
}

func (m *Memory) Close() error { return nil }
