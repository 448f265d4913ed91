// Package registry caches the user's datasets and tracks which one is
// selected.
//
// The server returns datasets most recent first. The registry keeps that
// order and never re-sorts, so index 0 is always the latest upload; Latest
// exposes that contract to callers.
package registry

import (
	"context"
	"slices"
	"sync"

	"github.com/atinyakov/chemora/internal/client/api"
	"github.com/atinyakov/chemora/internal/models"
	"go.uber.org/zap"
)

// CapacityWarning is shown when the user holds MaxDatasets datasets.
const CapacityWarning = "You have reached the maximum of 5 datasets. New uploads will replace the oldest dataset."

// Lister fetches the dataset list.
type Lister interface {
	Datasets(ctx context.Context, auth api.Authorizer) ([]models.Dataset, error)
}

// Registry is safe for concurrent use.
type Registry struct {
	lister Lister
	auth   func() api.Authorizer
	log    *zap.Logger

	mu       sync.RWMutex
	datasets []models.Dataset
	selected int64
	subs     []func(int64)
}

// New returns an empty registry. auth is consulted on every refresh.
func New(lister Lister, auth func() api.Authorizer, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{lister: lister, auth: auth, log: log}
}

// OnSelect registers fn to be called when the selection changes. The id is
// 0 when the selection was cleared.
func (r *Registry) OnSelect(fn func(id int64)) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// Refresh replaces the cached list with the server's. On failure the cache
// is emptied and the error returned. A selection that is no longer listed
// is dropped; with no selection the latest dataset is selected.
func (r *Registry) Refresh(ctx context.Context) error {
	list, err := r.lister.Datasets(ctx, r.auth())
	if err != nil {
		r.log.Warn("failed to refresh datasets", zap.Error(err))
		list = nil
	}
	if list == nil {
		list = []models.Dataset{}
	}

	r.mu.Lock()
	r.datasets = list
	prev := r.selected
	if r.selected != 0 && r.indexLocked(r.selected) < 0 {
		r.selected = 0
	}
	if r.selected == 0 && len(r.datasets) > 0 {
		r.selected = r.datasets[0].ID
	}
	cur := r.selected
	r.mu.Unlock()

	if cur != prev {
		r.notify(cur)
	}
	return err
}

// Select makes id the active dataset. Ids not in the cache are ignored.
func (r *Registry) Select(id int64) {
	r.mu.Lock()
	if r.indexLocked(id) < 0 || r.selected == id {
		r.mu.Unlock()
		return
	}
	r.selected = id
	r.mu.Unlock()
	r.notify(id)
}

// Selected returns the selected id, or 0.
func (r *Registry) Selected() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// Active returns the selected dataset when it is present in the cache.
func (r *Registry) Active() (models.Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(r.selected); i >= 0 {
		return r.datasets[i], true
	}
	return models.Dataset{}, false
}

// Latest returns the most recently uploaded dataset.
func (r *Registry) Latest() (models.Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.datasets) == 0 {
		return models.Dataset{}, false
	}
	return r.datasets[0], true
}

// Find returns the cached dataset with id.
func (r *Registry) Find(id int64) (models.Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.datasets[i], true
	}
	return models.Dataset{}, false
}

// Datasets returns a copy of the cached list in server order.
func (r *Registry) Datasets() []models.Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.datasets)
}

// History returns at most MaxDatasets of the most recent datasets.
func (r *Registry) History() []models.Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := min(len(r.datasets), models.MaxDatasets)
	return slices.Clone(r.datasets[:n])
}

// Count is the number of cached datasets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.datasets)
}

// RemainingSlots is the number of uploads left before the server starts
// evicting.
func (r *Registry) RemainingSlots() int {
	return max(0, models.MaxDatasets-r.Count())
}

// AtCapacity reports whether CapacityWarning should be shown.
func (r *Registry) AtCapacity() bool {
	return r.Count() >= models.MaxDatasets
}

// Clear forgets the cache and the selection.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.datasets = nil
	prev := r.selected
	r.selected = 0
	r.mu.Unlock()
	if prev != 0 {
		r.notify(0)
	}
}

func (r *Registry) indexLocked(id int64) int {
	return slices.IndexFunc(r.datasets, func(d models.Dataset) bool { return d.ID == id })
}

func (r *Registry) notify(id int64) {
	r.mu.RLock()
	subs := slices.Clone(r.subs)
	r.mu.RUnlock()
	for _, fn := range subs {
		fn(id)
	}
}
