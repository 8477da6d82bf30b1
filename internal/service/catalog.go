package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/booking-engine/internal/domain"
	"github.com/kursadbilgin/booking-engine/internal/repository"
)

const (
	defaultCatalogTTL     = 5 * time.Minute
	defaultCatalogMaxSize = 512
)

type catalogEntry struct {
	service   domain.Service
	expiresAt time.Time
}

// Catalog is a read-through cache over the service repository. Bookability
// policy changes rarely, so availability checks read a snapshot at most TTL
// old. Eviction: entries past their TTL are dropped on read; when the cache is
// full the expired entries are purged first and, failing that, the insert
// evicts the entry closest to expiry.
type Catalog struct {
	services repository.ServiceRepository
	ttl      time.Duration
	maxSize  int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]catalogEntry
}

func NewCatalog(services repository.ServiceRepository, ttl time.Duration, maxSize int) (*Catalog, error) {
	if services == nil {
		return nil, fmt.Errorf("service repository is required")
	}
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	if maxSize <= 0 {
		maxSize = defaultCatalogMaxSize
	}

	return &Catalog{
		services: services,
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
		entries:  make(map[string]catalogEntry),
	}, nil
}

// Get returns the service policy snapshot, loading it through the repository
// on a miss. Unknown ids propagate domain.ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*domain.Service, error) {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok && c.now().Before(entry.expiresAt) {
		svc := entry.service
		c.mu.Unlock()
		return &svc, nil
	}
	if ok {
		delete(c.entries, id)
	}
	c.mu.Unlock()

	svc, err := c.services.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.store(id, *svc)
	return svc, nil
}

// Invalidate drops a cached snapshot, e.g. after an admin service update.
func (c *Catalog) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func (c *Catalog) store(id string, svc domain.Service) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		for key, entry := range c.entries {
			if !now.Before(entry.expiresAt) {
				delete(c.entries, key)
			}
		}
	}
	if len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestExpiry time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.expiresAt.Before(oldestExpiry) {
				oldestKey = key
				oldestExpiry = entry.expiresAt
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[id] = catalogEntry{service: svc, expiresAt: now.Add(c.ttl)}
}
