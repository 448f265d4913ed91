// Package analytics loads a dataset's equipment and summary and derives the
// filtered table, chart series and statistics shown for it.
package analytics

import (
	"context"
	"errors"
	"sync"

	"github.com/atinyakov/chemora/internal/client/api"
	"github.com/atinyakov/chemora/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned by Load when a newer Load or Reset started
// before it finished. Its result was discarded.
var ErrSuperseded = errors.New("analytics: load superseded")

// Fetcher retrieves the two halves of a dataset.
type Fetcher interface {
	Equipment(ctx context.Context, auth api.Authorizer, datasetID int64) ([]models.Equipment, error)
	Summary(ctx context.Context, auth api.Authorizer, datasetID int64) (*models.Summary, error)
}

// Pipeline holds the loaded data of at most one dataset together with the
// search and type filter. Derived values are computed by View.
type Pipeline struct {
	fetch Fetcher
	log   *zap.Logger

	mu         sync.RWMutex
	gen        uint64
	loading    bool
	datasetID  int64
	records    []models.Equipment
	summary    *models.Summary
	search     string
	typeFilter string
}

// NewPipeline returns an empty pipeline that fetches through fetch. A nil
// log discards output.
func NewPipeline(fetch Fetcher, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{fetch: fetch, log: log, records: []models.Equipment{}}
}

// Load fetches equipment and summary of datasetID concurrently. The result
// is committed only when both succeed; if either fails the pipeline is
// emptied. Only the most recent Load may commit: an older one finishing
// late returns ErrSuperseded and changes nothing.
func (p *Pipeline) Load(ctx context.Context, datasetID int64, auth api.Authorizer) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.loading = true
	p.mu.Unlock()

	var (
		records []models.Equipment
		summary *models.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = p.fetch.Equipment(gctx, auth, datasetID)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = p.fetch.Summary(gctx, auth, datasetID)
		return err
	})
	err := g.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		p.log.Debug("discarding stale analytics load", zap.Int64("dataset_id", datasetID))
		return ErrSuperseded
	}
	p.loading = false
	p.datasetID = datasetID
	if err != nil {
		p.log.Warn("failed to load analytics", zap.Int64("dataset_id", datasetID), zap.Error(err))
		p.records = []models.Equipment{}
		p.summary = nil
		return err
	}
	if records == nil {
		records = []models.Equipment{}
	}
	p.records = records
	p.summary = summary
	return nil
}

// Reset empties the pipeline and invalidates any load in flight.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.gen++
	p.loading = false
	p.datasetID = 0
	p.records = []models.Equipment{}
	p.summary = nil
	p.mu.Unlock()
}

// Loading reports whether the latest Load is still running.
func (p *Pipeline) Loading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loading
}

// SetSearch sets the case-insensitive name filter. Empty matches every
// record.
func (p *Pipeline) SetSearch(s string) {
	p.mu.Lock()
	p.search = s
	p.mu.Unlock()
}

// SetTypeFilter restricts the table to one equipment type. Empty means all.
func (p *Pipeline) SetTypeFilter(t string) {
	p.mu.Lock()
	p.typeFilter = t
	p.mu.Unlock()
}

// View derives everything shown for the loaded dataset from the current
// inputs. It is recomputed on every call.
func (p *Pipeline) View() DerivedView {
	p.mu.RLock()
	records := p.records
	summary := p.summary
	v := DerivedView{
		DatasetID:  p.datasetID,
		Loading:    p.loading,
		Search:     p.search,
		TypeFilter: p.typeFilter,
	}
	p.mu.RUnlock()

	return derive(v, records, summary)
}
