// Package cache persists resolved Wikidata locations between runs.
//
// Keys are "label:<search text>" or "qid:<entity id>". Entries are never
// expired; deleting the backing file (or table, or hash) is the only eviction.
package cache

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peak-enrich/internal/model"
)

const (
	labelPrefix = "label:"
	qidPrefix   = "qid:"
)

// Store is a key -> Location mapping that is written back on Flush.
type Store interface {
	Get(ctx context.Context, key string) (*model.Location, bool, error)
	Put(ctx context.Context, key string, loc model.Location) error
	Flush(ctx context.Context) error
	Close() error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// LabelKey returns the cache key for an exact-label lookup.
func LabelKey(text string) string {
	return labelPrefix + text
}

// QIDKey returns the cache key for a by-entity lookup.
func QIDKey(qid string) string {
	return qidPrefix + qid
}

// Stats counts cached entries by key kind.
type Stats struct {
	Labels int
	QIDs   int
	Other  int
}

// Total returns the number of entries.
func (s Stats) Total() int {
	return s.Labels + s.QIDs + s.Other
}

// CountKeys computes Stats for a store that supports listing.
func CountKeys(ctx context.Context, s Store) (Stats, error) {
	l, ok := s.(Lister)
	if !ok {
		return Stats{}, eris.New("cache: store does not support listing keys")
	}
	keys, err := l.Keys(ctx)
	if err != nil {
		return Stats{}, eris.Wrap(err, "cache: list keys")
	}
	var st Stats
	for _, k := range keys {
		switch {
		case strings.HasPrefix(k, labelPrefix):
			st.Labels++
		case strings.HasPrefix(k, qidPrefix):
			st.QIDs++
		default:
			st.Other++
		}
	}
	return st, nil
}
