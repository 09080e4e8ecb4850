package blobcache

import (
	"context"
	"sort"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps blobs in process memory. Entries never expire; removal
// happens only through Delete. Content is lost on restart.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, 0)}
}

// List returns all stored names, sorted.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := s.c.Items()
	out := make([]string, 0, len(items))
	for k := range items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Read returns a copy of the content stored under name.
func (s *MemoryStore) Read(_ context.Context, name string) ([]byte, error) {
	v, ok := s.c.Get(name)
	if !ok {
		return nil, ErrBlobNotFound
	}
	b := v.([]byte)
	return append([]byte(nil), b...), nil
}

// Write stores a copy of data under name.
func (s *MemoryStore) Write(ctx context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.Set(name, append([]byte(nil), data...), gocache.NoExpiration)
	return nil
}

// Delete removes name.
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.c.Delete(name)
	return nil
}

// Exists reports whether name is stored.
func (s *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	_, ok := s.c.Get(name)
	return ok, nil
}
