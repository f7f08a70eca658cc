package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/livebundle/pkg/module"
	"github.com/matzehuels/livebundle/pkg/observability"
)

const moduleKeyType = "module"

// ModuleStore is the remote fetch cache: it maps module addresses to the
// records produced by their first successful load.
//
// The store is append-only from the loader's point of view. Put writes with
// no TTL and nothing in this package ever invalidates a record.
type ModuleStore struct {
	cache Cache
	keyer Keyer
}

// NewModuleStore wraps c. A nil keyer selects [DefaultKeyer]; a nil cache
// selects [NullCache].
func NewModuleStore(c Cache, keyer Keyer) *ModuleStore {
	if c == nil {
		c = NewNullCache()
	}
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	return &ModuleStore{cache: c, keyer: keyer}
}

// wireRecord is the stored form of a record. Content is a []byte so binary
// assets survive the JSON round trip (encoded as base64).
type wireRecord struct {
	Content []byte      `json:"content"`
	Kind    module.Kind `json:"kind"`
	Base    string      `json:"base"`
}

// Get returns the record stored for addr.
func (s *ModuleStore) Get(ctx context.Context, addr module.Address) (module.Record, bool, error) {
	data, ok, err := s.cache.Get(ctx, s.keyer.ModuleKey(string(addr)))
	if err != nil {
		return module.Record{}, false, err
	}
	if !ok {
		observability.Cache().OnCacheMiss(ctx, moduleKeyType)
		return module.Record{}, false, nil
	}

	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		observability.Cache().OnCacheMiss(ctx, moduleKeyType)
		return module.Record{}, false, fmt.Errorf("decode cached record for %s: %w", addr, err)
	}
	observability.Cache().OnCacheHit(ctx, moduleKeyType)
	return module.Record{Content: string(w.Content), Kind: w.Kind, Base: w.Base}, true, nil
}

// Put stores rec under addr without expiry.
func (s *ModuleStore) Put(ctx context.Context, addr module.Address, rec module.Record) error {
	data, err := json.Marshal(wireRecord{Content: []byte(rec.Content), Kind: rec.Kind, Base: rec.Base})
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, s.keyer.ModuleKey(string(addr)), data, 0); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, moduleKeyType, len(data))
	return nil
}

// Close closes the underlying cache.
func (s *ModuleStore) Close() error { return s.cache.Close() }
