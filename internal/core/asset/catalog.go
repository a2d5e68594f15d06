package asset

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/replica/internal/core/animation"
)

// Catalog is the YAML description of every loadable asset.
type Catalog struct {
	Assets []CatalogEntry `yaml:"assets"`
}

type CatalogEntry struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	// Clips maps a clip name to its duration in seconds.
	Clips map[string]float64 `yaml:"clips"`
}

// LoadCatalog decodes and validates a catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCatalogFile reads a catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

func (c *Catalog) Validate() error {
	seen := make(map[int]struct{}, len(c.Assets))
	for _, a := range c.Assets {
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidCatalog, a.ID)
		}
		seen[a.ID] = struct{}{}
		for name, d := range a.Clips {
			if d <= 0 {
				return fmt.Errorf("%w: asset %d clip %q has non-positive duration", ErrInvalidCatalog, a.ID, name)
			}
		}
	}
	return nil
}

// IDs lists the catalog's asset ids in file order.
func (c *Catalog) IDs() []int {
	ids := make([]int, len(c.Assets))
	for i, a := range c.Assets {
		ids[i] = a.ID
	}
	return ids
}

// CatalogLoader serves models straight from a catalog, optionally after an
// artificial delay standing in for network retrieval.
type CatalogLoader struct {
	entries map[int]CatalogEntry
	latency time.Duration
}

func NewCatalogLoader(c *Catalog, latency time.Duration) *CatalogLoader {
	entries := make(map[int]CatalogEntry, len(c.Assets))
	for _, a := range c.Assets {
		entries[a.ID] = a
	}
	return &CatalogLoader{entries: entries, latency: latency}
}

func (l *CatalogLoader) Load(ctx context.Context, id int) (*Model, error) {
	if l.latency > 0 {
		timer := time.NewTimer(l.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	e, ok := l.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAsset, id)
	}
	m := &Model{ID: e.ID, Name: e.Name, Clips: make(map[string]*animation.Clip, len(e.Clips))}
	for name, d := range e.Clips {
		m.Clips[name] = &animation.Clip{Name: name, Duration: d}
	}
	return m, nil
}
