package view

import (
	"sync"

	"github.com/rewired-gh/tokenpulse/internal/models"
	"github.com/rewired-gh/tokenpulse/internal/tokens"
)

// Settings is the user's current view selection.
type Settings struct {
	Criteria models.FilterCriteria `json:"criteria"`
	Tab      models.Category       `json:"tab"`
	Sort     models.SortSpec       `json:"sort"`
}

// DefaultSettings opens the new-pairs tab sorted by volume, highest first.
func DefaultSettings() Settings {
	return Settings{Tab: models.CategoryNewPairs, Sort: models.DefaultSortSpec()}
}

// Pipeline holds view settings and caches the filter then sort result.
// The cache is keyed on the snapshot version and a settings revision that
// every setter bumps.
type Pipeline struct {
	mu       sync.Mutex
	settings Settings
	revision uint64

	cachedVersion  uint64
	cachedRevision uint64
	cached         []models.Token
	valid          bool
}

func NewPipeline(s Settings) *Pipeline {
	return &Pipeline{settings: s}
}

// Settings returns the current selection.
func (p *Pipeline) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

func (p *Pipeline) update(fn func(s *Settings)) {
	p.mu.Lock()
	fn(&p.settings)
	p.revision++
	p.mu.Unlock()
}

func (p *Pipeline) SetSearchQuery(q string) {
	p.update(func(s *Settings) { s.Criteria.SearchQuery = q })
}

func (p *Pipeline) SetPriceRange(r models.Range) {
	p.update(func(s *Settings) { s.Criteria.PriceRange = r })
}

func (p *Pipeline) SetVolumeRange(r models.Range) {
	p.update(func(s *Settings) { s.Criteria.VolumeRange = r })
}

func (p *Pipeline) SetChangeRange(r models.Range) {
	p.update(func(s *Settings) { s.Criteria.ChangeRange = r })
}

// ClearFilters resets search and every range.
func (p *Pipeline) ClearFilters() {
	p.update(func(s *Settings) { s.Criteria = models.FilterCriteria{} })
}

func (p *Pipeline) SetTab(tab models.Category) {
	p.update(func(s *Settings) { s.Tab = tab })
}

func (p *Pipeline) SetSort(spec models.SortSpec) {
	p.update(func(s *Settings) { s.Sort = spec })
}

// ToggleSort applies the header-click behaviour for field.
func (p *Pipeline) ToggleSort(field models.SortField) {
	p.update(func(s *Settings) { s.Sort = s.Sort.Toggle(field) })
}

// Rows returns the filtered, tab-restricted and sorted view of snap. The
// returned slice is shared with the cache and must not be modified.
func (p *Pipeline) Rows(snap tokens.Snapshot) []models.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.valid && p.cachedVersion == snap.Version && p.cachedRevision == p.revision {
		return p.cached
	}

	rows := Apply(snap, p.settings)
	p.cached = rows
	p.cachedVersion = snap.Version
	p.cachedRevision = p.revision
	p.valid = true
	return rows
}

// Apply computes a view for one-off settings without touching the cache.
func Apply(snap tokens.Snapshot, s Settings) []models.Token {
	return Sort(Filter(snap.Tokens, s.Criteria), s.Tab, s.Sort)
}
