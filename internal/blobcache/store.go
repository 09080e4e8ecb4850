// Package blobcache keeps a keyed image cache aligned with the current top
// set. Entries are files named "<key>.<ext>" where the key is a meme id or one
// of the reserved keys holding fallback and derived assets.
//
// The package provides the Store abstraction with filesystem and in-memory
// backends, an HTTP Fetcher, the Reconciler that adds missing and evicts stale
// entries, and the image resolution used when rendering the report.
package blobcache

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
)

// Reserved keys are never evicted because of absence from the desired set.
const (
	KeyNSFW    = "nsfw"
	KeyDefault = "default"
	KeyChart   = "chart"
)

// NSFWSentinel is the thumbnail value marking content that must not be fetched.
const NSFWSentinel = "nsfw"

// DefaultExt is used when no extension can be inferred from a source URL.
const DefaultExt = "jpg"

// ErrInvalidName is returned for names that are empty or contain path elements.
var ErrInvalidName = errors.New("invalid blob name")

// ErrBlobNotFound is returned by Read when no entry exists under a name.
var ErrBlobNotFound = errors.New("blob not found")

// Store is a flat, directory-like keyed blob store.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

// IsReserved reports whether key names a fallback or derived asset.
func IsReserved(key string) bool {
	switch key {
	case KeyNSFW, KeyDefault, KeyChart:
		return true
	}
	return false
}

// Key returns the part of name before its last '.'.
func Key(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// Name joins a key and an extension.
func Name(key, ext string) string { return key + "." + ext }

// Ext infers a file extension from the last path segment of rawURL. The query
// string is stripped first. DefaultExt is returned when nothing usable is found.
func Ext(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	seg := path.Base(p)
	i := strings.LastIndexByte(seg, '.')
	if i < 0 || i == len(seg)-1 {
		return DefaultExt
	}
	ext := strings.ToLower(seg[i+1:])
	if len(ext) > 5 {
		return DefaultExt
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return DefaultExt
		}
	}
	return ext
}

// Fetchable reports whether a thumbnail value is an absolute http(s) URL.
// Sentinels such as "nsfw", "self", "default" or "" are not.
func Fetchable(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	return nil
}
