// Package objectstore lists objects from an S3-compatible bucket (or a local
// directory laid out like one) for the asset catalog.
//
// Listings are always drained completely before they are returned: callers
// never see a partial page.
package objectstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"eduetl/internal/config"
	"eduetl/internal/record"
)

// Object is one listed key.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Lister is what the asset catalog needs from a bucket.
type Lister interface {
	// ListPrefixes returns the immediate "folders" under prefix, each ending
	// in the delimiter, in lexical order.
	ListPrefixes(ctx context.Context, prefix string) ([]string, error)

	// ListObjects returns every object below prefix, recursively, across all
	// result pages, in lexical order. Folder placeholder keys (ending in the
	// delimiter) are included; callers filter them.
	ListObjects(ctx context.Context, prefix string) ([]Object, error)
}

// New returns the Lister configured by cfg. An endpoint of the form
// file:///some/dir selects a LocalStore rooted there; anything else is an
// S3/MinIO endpoint.
func New(cfg config.ObjectStore) (Lister, error) {
	if root, ok := strings.CutPrefix(cfg.Endpoint, "file://"); ok {
		return NewLocalStore(path.Join(root, cfg.Bucket)), nil
	}
	return NewS3(cfg)
}

// Catalog turns listings into asset records.
type Catalog struct {
	Lister        Lister
	PublicBaseURL string
}

// Asset field names.
const (
	FieldKey  = "key"
	FieldName = "name"
	FieldURL  = "url"
)

// ListAll returns one record per object below prefix, skipping folder
// placeholders. Each record carries key, name (base name without extension)
// and url (PublicBaseURL joined with the key).
func (c Catalog) ListAll(ctx context.Context, prefix string) ([]record.Record, error) {
	objs, err := c.Lister.ListObjects(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	out := make([]record.Record, 0, len(objs))
	for _, o := range objs {
		if o.Key == "" || strings.HasSuffix(o.Key, "/") {
			continue
		}
		out = append(out, record.Record{
			FieldKey:  o.Key,
			FieldName: AssetName(o.Key),
			FieldURL:  PublicURL(c.PublicBaseURL, o.Key),
		})
	}
	return out, nil
}

// Chapters returns the folders directly under prefix together with their
// last path element ("foundation/grade-10/science/1.numbers/" -> "1.numbers").
func (c Catalog) Chapters(ctx context.Context, prefix string) (prefixes, names []string, err error) {
	prefixes, err = c.Lister.ListPrefixes(ctx, prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("list folders under %q: %w", prefix, err)
	}
	names = make([]string, len(prefixes))
	for i, p := range prefixes {
		names[i] = path.Base(strings.TrimSuffix(p, "/"))
	}
	return prefixes, names, nil
}

// AssetName is the base name of key without its last extension.
func AssetName(key string) string {
	base := path.Base(key)
	if ext := path.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// PublicURL joins base and key with exactly one '/'.
func PublicURL(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
