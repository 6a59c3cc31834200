package artifact

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int
	// BlobMaxBytes skips caching blobs larger than this; 0 caches all.
	BlobMaxBytes int

	ListTTL        time.Duration
	ListMaxEntries int

	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 1024,
		BlobMaxBytes:   8 << 20,
		ListTTL:        30 * time.Second,
		ListMaxEntries: 512,
		URLTTL:         5 * time.Minute,
		URLMaxEntries:  1024,
	}
}

func (c CacheConfig) withDefaults() CacheConfig {
	def := DefaultCacheConfig()
	if c.BlobTTL <= 0 {
		c.BlobTTL = def.BlobTTL
	}
	if c.BlobMaxEntries <= 0 {
		c.BlobMaxEntries = def.BlobMaxEntries
	}
	if c.BlobMaxBytes < 0 {
		c.BlobMaxBytes = def.BlobMaxBytes
	}
	if c.ListTTL <= 0 {
		c.ListTTL = def.ListTTL
	}
	if c.ListMaxEntries <= 0 {
		c.ListMaxEntries = def.ListMaxEntries
	}
	if c.URLTTL <= 0 {
		c.URLTTL = def.URLTTL
	}
	if c.URLMaxEntries <= 0 {
		c.URLMaxEntries = def.URLMaxEntries
	}
	return c
}

type MetricsSnapshot struct {
	BlobHits       uint64
	BlobMisses     uint64
	ListHits       uint64
	ListMisses     uint64
	URLHits        uint64
	URLMisses      uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type metrics struct {
	blobHits, blobMisses          atomic.Uint64
	listHits, listMisses          atomic.Uint64
	urlHits, urlMisses            atomic.Uint64
	originReads, originWrites     atomic.Uint64
	originReadErr, originWriteErr atomic.Uint64
}

// CachedStore is a read-through, write-through cache in front of another
// Store. Writes invalidate the session's listing.
type CachedStore struct {
	origin  Store
	maxBlob int

	blobs *expirable.LRU[string, []byte]
	lists *expirable.LRU[string, []string]
	urls  *expirable.LRU[string, string]
	m     metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	cfg = cfg.withDefaults()
	return &CachedStore{
		origin:  origin,
		maxBlob: cfg.BlobMaxBytes,
		blobs:   expirable.NewLRU[string, []byte](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		lists:   expirable.NewLRU[string, []string](cfg.ListMaxEntries, nil, cfg.ListTTL),
		urls:    expirable.NewLRU[string, string](cfg.URLMaxEntries, nil, cfg.URLTTL),
	}
}

func (s *CachedStore) cacheBlob(key string, b []byte) {
	if s.maxBlob > 0 && len(b) > s.maxBlob {
		s.blobs.Remove(key)
		return
	}
	s.blobs.Add(key, append([]byte(nil), b...))
}

func (s *CachedStore) Put(ctx context.Context, sessionID, path string, content []byte) error {
	key, err := objectKey(sessionID, path)
	if err != nil {
		return err
	}
	s.m.originWrites.Add(1)
	if err := s.origin.Put(ctx, sessionID, path, content); err != nil {
		s.m.originWriteErr.Add(1)
		return err
	}
	s.cacheBlob(key, content)
	s.lists.Remove(strings.TrimSpace(sessionID))
	s.urls.Remove(key)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, sessionID, path string) ([]byte, error) {
	key, err := objectKey(sessionID, path)
	if err != nil {
		return nil, err
	}
	if raw, ok := s.blobs.Get(key); ok {
		s.m.blobHits.Add(1)
		return append([]byte(nil), raw...), nil
	}
	s.m.blobMisses.Add(1)
	s.m.originReads.Add(1)
	raw, err := s.origin.Get(ctx, sessionID, path)
	if err != nil {
		s.m.originReadErr.Add(1)
		return nil, err
	}
	s.cacheBlob(key, raw)
	return raw, nil
}

func (s *CachedStore) GetURL(ctx context.Context, sessionID, path string) (string, error) {
	key, err := objectKey(sessionID, path)
	if err != nil {
		return "", err
	}
	if u, ok := s.urls.Get(key); ok {
		s.m.urlHits.Add(1)
		return u, nil
	}
	s.m.urlMisses.Add(1)
	s.m.originReads.Add(1)
	u, err := s.origin.GetURL(ctx, sessionID, path)
	if err != nil {
		s.m.originReadErr.Add(1)
		return "", err
	}
	if strings.TrimSpace(u) != "" {
		s.urls.Add(key, u)
	}
	return u, nil
}

func (s *CachedStore) List(ctx context.Context, sessionID string) ([]string, error) {
	sid := strings.TrimSpace(sessionID)
	if list, ok := s.lists.Get(sid); ok {
		s.m.listHits.Add(1)
		return append([]string(nil), list...), nil
	}
	s.m.listMisses.Add(1)
	s.m.originReads.Add(1)
	list, err := s.origin.List(ctx, sessionID)
	if err != nil {
		s.m.originReadErr.Add(1)
		return nil, err
	}
	s.lists.Add(sid, append([]string(nil), list...))
	return list, nil
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		BlobHits:       s.m.blobHits.Load(),
		BlobMisses:     s.m.blobMisses.Load(),
		ListHits:       s.m.listHits.Load(),
		ListMisses:     s.m.listMisses.Load(),
		URLHits:        s.m.urlHits.Load(),
		URLMisses:      s.m.urlMisses.Load(),
		OriginReads:    s.m.originReads.Load(),
		OriginWrites:   s.m.originWrites.Load(),
		OriginReadErr:  s.m.originReadErr.Load(),
		OriginWriteErr: s.m.originWriteErr.Load(),
	}
}
