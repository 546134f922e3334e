package reference

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateEntry is returned when a create collides with an existing entry
// after name normalization.
var ErrDuplicateEntry = errors.New("reference entry already exists")

// ErrEntryNotFound is returned when a lookup finds no entry.
var ErrEntryNotFound = errors.New("reference entry not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateEntry adds a catalog entry. Names are normalized before storage and
// duplicates after normalization are rejected.
func (s *Service) CreateEntry(ctx context.Context, displayName, idealRange string) (*Entry, error) {
	normalized := NormalizeName(displayName)
	if normalized == "" {
		return nil, fmt.Errorf("entry name is required")
	}
	if strings.TrimSpace(idealRange) == "" {
		return nil, fmt.Errorf("ideal range is required")
	}

	if _, err := s.repo.GetByNormalizedName(ctx, normalized); err == nil {
		return nil, ErrDuplicateEntry
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	e := &Entry{
		NormalizedName: normalized,
		DisplayName:    strings.TrimSpace(displayName),
		IdealRange:     strings.TrimSpace(idealRange),
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEntry fetches an entry by ID.
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// UpdateEntry changes an entry's display name and range.
func (s *Service) UpdateEntry(ctx context.Context, id uuid.UUID, displayName, idealRange string) (*Entry, error) {
	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if displayName != "" {
		e.DisplayName = strings.TrimSpace(displayName)
	}
	if idealRange != "" {
		e.IdealRange = strings.TrimSpace(idealRange)
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEntry removes an entry.
func (s *Service) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// SearchEntries lists entries whose normalized name matches q as an exact or
// substring match. Empty q lists everything.
func (s *Service) SearchEntries(ctx context.Context, q string, limit, offset int) ([]*Entry, int, error) {
	normalized := NormalizeName(q)
	if normalized == "" {
		return s.repo.List(ctx, limit, offset)
	}
	return s.repo.Search(ctx, normalized, limit, offset)
}

// BatchUpdate applies range changes by name. Entries whose stored range
// already equals the submitted value are skipped; names with no catalog entry
// are reported back, not created.
func (s *Service) BatchUpdate(ctx context.Context, items []BatchItem) (*BatchResult, error) {
	result := &BatchResult{}
	for _, item := range items {
		normalized := NormalizeName(item.Name)
		if normalized == "" {
			continue
		}
		e, err := s.repo.GetByNormalizedName(ctx, normalized)
		if errors.Is(err, pgx.ErrNoRows) {
			result.Missing = append(result.Missing, item.Name)
			continue
		}
		if err != nil {
			return nil, err
		}

		newRange := strings.TrimSpace(item.IdealRange)
		if e.IdealRange == newRange {
			result.Skipped++
			continue
		}
		e.IdealRange = newRange
		if err := s.repo.Update(ctx, e); err != nil {
			return nil, err
		}
		result.Updated++
	}
	return result, nil
}

// Snapshot loads the whole catalog into an in-memory Catalog for one analysis
// run, so per-row lookups during classification never touch the database.
func (s *Service) Snapshot(ctx context.Context) (*Catalog, error) {
	entries, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewCatalog(entries), nil
}

// Catalog is an immutable in-memory view of the reference entries, keyed by
// normalized name.
type Catalog struct {
	byName map[string]*Entry
	names  []string // sorted, for deterministic partial-match resolution
}

// NewCatalog builds a catalog from entries.
func NewCatalog(entries []*Entry) *Catalog {
	c := &Catalog{byName: make(map[string]*Entry, len(entries))}
	for _, e := range entries {
		c.byName[e.NormalizedName] = e
		c.names = append(c.names, e.NormalizedName)
	}
	sort.Strings(c.names)
	return c
}

// Lookup resolves an exam name against the catalog. Exact normalized matches
// win; otherwise partial matches (either name containing the other) are
// resolved alphabetically so collisions are deterministic. Returns nil when
// nothing matches.
func (c *Catalog) Lookup(name string) *Entry {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil
	}
	if e, ok := c.byName[normalized]; ok {
		return e
	}
	for _, candidate := range c.names {
		if strings.Contains(normalized, candidate) || strings.Contains(candidate, normalized) {
			return c.byName[candidate]
		}
	}
	return nil
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.byName)
}

// Entries returns the catalog entries ordered by normalized name.
func (c *Catalog) Entries() []*Entry {
	entries := make([]*Entry, 0, len(c.names))
	for _, name := range c.names {
		entries = append(entries, c.byName[name])
	}
	return entries
}
