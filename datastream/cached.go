package datastream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mitjajez/nodewatcher/pkg/cache"
)

// CachedStore wraps a Store and memoizes EnsureStream results so that repeated
// identical ensures skip the round trip to the backing store.
//
// Only non-derived ensures are memoized, and only when the whole request
// (query tags, descriptive tags and options) is identical to a previously
// successful one. An identical non-derived ensure is a no-op at the store, so
// answering it from the cache is transparent. Derived ensures always pass
// through: the store's configuration consistency check is what drives
// reconciliation of derived streams, and it must see every request.
//
// DeleteStreams clears the whole memo. Deletes are rare (node removal,
// derived-stream reconciliation) and selective invalidation would have to
// evaluate tag subsumption against every cached request.
type CachedStore struct {
	next Store
	ids  cache.Cache[StreamID]
}

// NewCachedStore wraps next with an ensure memo backed by ids. The cache is
// injected so callers choose its strategy, size and metrics.
func NewCachedStore(next Store, ids cache.Cache[StreamID]) *CachedStore {
	return &CachedStore{next: next, ids: ids}
}

// EnsureStream answers identical non-derived ensures from the memo and
// delegates everything else to the wrapped store.
func (s *CachedStore) EnsureStream(ctx context.Context, queryTags, tags Tags, opts EnsureOptions) (StreamID, error) {
	if opts.Derived() {
		return s.next.EnsureStream(ctx, queryTags, tags, opts)
	}

	key, err := ensureKey(queryTags, tags, opts)
	if err != nil {
		// Unkeyable requests are still valid requests.
		return s.next.EnsureStream(ctx, queryTags, tags, opts)
	}

	if id, ok := s.ids.Get(key); ok {
		return id, nil
	}

	id, err := s.next.EnsureStream(ctx, queryTags, tags, opts)
	if err != nil {
		return "", err
	}
	// A full cache only costs extra round trips.
	_, _ = s.ids.Set(key, id)
	return id, nil
}

// Append delegates to the wrapped store.
func (s *CachedStore) Append(ctx context.Context, id StreamID, value any, at time.Time) error {
	return s.next.Append(ctx, id, value, at)
}

// DeleteStreams delegates to the wrapped store and clears the ensure memo, as
// any cached id may belong to a stream the delete just removed.
func (s *CachedStore) DeleteStreams(ctx context.Context, queryTags Tags) error {
	err := s.next.DeleteStreams(ctx, queryTags)
	if err != nil {
		return err
	}
	_ = s.ids.Clear()
	return nil
}

// ensureKey serializes the full ensure request deterministically. Tag maps go
// through CanonicalKey so numeric leaves keep their identity across JSON round
// trips; options marshal stably because encoding/json emits struct fields in
// declaration order and sorts map keys.
func ensureKey(queryTags, tags Tags, opts EnsureOptions) (string, error) {
	qk, err := CanonicalKey(queryTags)
	if err != nil {
		return "", err
	}
	tk, err := CanonicalKey(tags)
	if err != nil {
		return "", err
	}
	ok, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(qk) + len(tk) + len(ok) + 2)
	b.WriteString(qk)
	b.WriteByte('|')
	b.WriteString(tk)
	b.WriteByte('|')
	b.Write(ok)
	return b.String(), nil
}
