package blobcache

import (
	"context"
)

// Index is a point-in-time view of a Store used to resolve display images
// without touching the store per row.
type Index struct {
	names    map[string]bool
	reserved map[string]string // reserved key -> name
}

// Snapshot lists s once and returns an Index over its content. Take it after
// reconciliation so lookups observe the final cache state.
func Snapshot(ctx context.Context, s Store) (*Index, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ix := &Index{
		names:    make(map[string]bool, len(names)),
		reserved: make(map[string]string, 3),
	}
	for _, n := range names {
		ix.names[n] = true
		if k := Key(n); IsReserved(k) {
			if _, ok := ix.reserved[k]; !ok {
				ix.reserved[k] = n
			}
		}
	}
	return ix, nil
}

// Resolve returns the name of the image to display for a meme: the cached
// "<id>.<ext>" entry when present, else the nsfw asset for the nsfw sentinel,
// else the default asset.
func (ix *Index) Resolve(id, thumbnailURL string) string {
	if name := Name(id, Ext(thumbnailURL)); ix.names[name] {
		return name
	}
	if thumbnailURL == NSFWSentinel {
		return ix.fallback(KeyNSFW)
	}
	return ix.fallback(KeyDefault)
}

// Has reports whether name was present when the snapshot was taken.
func (ix *Index) Has(name string) bool { return ix.names[name] }

func (ix *Index) fallback(key string) string {
	if n, ok := ix.reserved[key]; ok {
		return n
	}
	return Name(key, "png")
}
