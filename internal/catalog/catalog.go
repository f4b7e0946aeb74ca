// Package catalog resolves race ids to prepared races, caching each one until
// its source changes.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/session"
	"github.com/verte-zerg/ultrasplit/internal/store"
)

type entry struct {
	race    *session.Race
	version time.Time
}

// Catalog serves races from the SQLite store and from files registered with
// AddFile. Files shadow stored races with the same id. It is safe for
// concurrent use.
type Catalog struct {
	store  *store.Store
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]string
	cache map[string]entry
}

// New returns a catalog over st. st may be nil when only files are served.
func New(st *store.Store, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		store:  st,
		logger: logger,
		files:  map[string]string{},
		cache:  map[string]entry{},
	}
}

// IDFromPath derives a race id from a file or directory name.
func IDFromPath(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// AddFile registers a race file or directory under id.
func (c *Catalog) AddFile(id, path string) error {
	if err := store.ValidateID(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[id] = path
	delete(c.cache, id)
	return nil
}

// List returns registered files and stored races ordered by id.
func (c *Catalog) List(ctx context.Context) ([]model.RaceInfo, error) {
	var stored []model.RaceInfo
	if c.store != nil {
		var err error
		stored, err = c.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list races: %w", err)
		}
	}

	c.mu.Lock()
	byID := make(map[string]model.RaceInfo, len(stored)+len(c.files))
	for _, info := range stored {
		byID[info.ID] = info
	}
	for id, path := range c.files {
		info := model.RaceInfo{ID: id, Name: id, Source: path}
		if e, ok := c.cache[id]; ok {
			info.Participants = len(e.race.Rows)
			info.Checkpoints = len(e.race.Checkpoints)
			info.ImportedAt = e.version
		}
		byID[id] = info
	}
	c.mu.Unlock()

	out := make([]model.RaceInfo, 0, len(byID))
	for _, info := range byID {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Race returns the prepared race for id. Unknown ids wrap store.ErrNotFound;
// structural problems wrap race.ErrMalformed.
func (c *Catalog) Race(ctx context.Context, id string) (*session.Race, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path, ok := c.files[id]; ok {
		return c.fileRace(id, path)
	}
	if c.store == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	info, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e, ok := c.cache[id]; ok && e.version.Equal(info.ImportedAt) {
		return e.race, nil
	}
	data, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	r := session.Prepare(data)
	session.LogDiagnostics(c.logger.With("race", id), r.Diagnostics)
	c.cache[id] = entry{race: r, version: info.ImportedAt}
	return r, nil
}

func (c *Catalog) fileRace(id, path string) (*session.Race, error) {
	version, err := sourceVersion(path)
	if err != nil {
		return nil, err
	}
	if e, ok := c.cache[id]; ok && e.version.Equal(version) {
		return e.race, nil
	}
	r, err := session.Load(path)
	if err != nil {
		return nil, err
	}
	session.LogDiagnostics(c.logger.With("race", id), r.Diagnostics)
	c.cache[id] = entry{race: r, version: version}
	return r, nil
}

// sourceVersion is the modification time of a race file, or the latest one
// among a race directory and its entries.
func sourceVersion(path string) (time.Time, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat race %s: %w", path, err)
	}
	version := stat.ModTime()
	if !stat.IsDir() {
		return version, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read race directory %s: %w", path, err)
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(version) {
			version = info.ModTime()
		}
	}
	return version, nil
}

// Loaded returns the races currently cached, keyed by id.
func (c *Catalog) Loaded() map[string]*session.Race {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*session.Race, len(c.cache))
	for id, e := range c.cache {
		out[id] = e.race
	}
	return out
}
