package session

import (
	cache "github.com/patrickmn/go-cache"

	"github.com/posturekit/posturebackend/models"
)

// ResultStore is a two-tier cache of landmark results keyed by result id,
// independent of session lifecycle. The automatic tier holds machine-computed
// results; the final tier holds user-corrected overlays. The current value
// for a key is the final result when present, falling back to the automatic
// one. Both tiers are safe for concurrent use.
type ResultStore struct {
	auto  *cache.Cache
	final *cache.Cache
}

// NewResultStore creates an empty result store. Entries never expire; they
// are evicted explicitly when a result is discarded.
func NewResultStore() *ResultStore {
	return &ResultStore{
		auto:  cache.New(cache.NoExpiration, 0),
		final: cache.New(cache.NoExpiration, 0),
	}
}

// Put writes or overwrites the automatic tier for a result id.
func (rs *ResultStore) Put(id string, set models.LandmarkSet) {
	rs.auto.Set(id, set, cache.NoExpiration)
}

// GetAuto reads the automatic tier.
func (rs *ResultStore) GetAuto(id string) (models.LandmarkSet, bool) {
	v, ok := rs.auto.Get(id)
	if !ok {
		return models.LandmarkSet{}, false
	}
	return v.(models.LandmarkSet), true
}

// HasAuto reports whether an automatic result exists for the id.
func (rs *ResultStore) HasAuto(id string) bool {
	_, ok := rs.auto.Get(id)
	return ok
}

// PutFinal writes or overwrites the finalized tier for a result id.
func (rs *ResultStore) PutFinal(id string, set models.LandmarkSet) {
	rs.final.Set(id, set, cache.NoExpiration)
}

// GetFinal reads the finalized tier.
func (rs *ResultStore) GetFinal(id string) (models.LandmarkSet, bool) {
	v, ok := rs.final.Get(id)
	if !ok {
		return models.LandmarkSet{}, false
	}
	return v.(models.LandmarkSet), true
}

// HasFinal reports whether a finalized result exists for the id.
func (rs *ResultStore) HasFinal(id string) bool {
	_, ok := rs.final.Get(id)
	return ok
}

// CurrentFinal returns the finalized result when present, else the automatic
// one, else reports absence.
func (rs *ResultStore) CurrentFinal(id string) (models.LandmarkSet, bool) {
	if set, ok := rs.GetFinal(id); ok {
		return set, true
	}
	return rs.GetAuto(id)
}

// Remove evicts both tiers for the id and returns the removed automatic
// value if there was one. Removing an absent id is a no-op. The read and the
// two evictions are not one atomic step: concurrent Remove calls on the same
// id may both observe and return the value, which callers treat as the
// idempotent outcome (nothing is ever resurrected, only reported twice).
func (rs *ResultStore) Remove(id string) (models.LandmarkSet, bool) {
	set, ok := rs.GetAuto(id)
	rs.auto.Delete(id)
	rs.final.Delete(id)
	return set, ok
}
