// Package geocode turns branch addresses into coordinates through Nominatim
// and keeps the answers in a JSON file shared between runs.
package geocode

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Coord is a latitude/longitude pair. It is stored as [lat, lon].
type Coord struct {
	Lat float64
	Lon float64
}

// MarshalJSON writes the pair form used by the cache file
func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lon})
}

// UnmarshalJSON reads the pair form used by the cache file
func (c *Coord) UnmarshalJSON(b []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	c.Lat, c.Lon = pair[0], pair[1]
	return nil
}

// Cache is the on-disk coordinate cache. Readers and writers in this
// process share mu; other processes are kept out by a lock file.
type Cache struct {
	path string
	lock *flock.Flock

	mu      sync.Mutex
	entries map[string]Coord
	dirty   bool
}

// OpenCache loads path if it exists. A missing file is an empty cache.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{
		path:    path,
		lock:    flock.New(path + ".lock"),
		entries: make(map[string]Coord),
	}
	if err := c.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock geocode cache: %w", err)
	}
	defer c.lock.Unlock()

	entries, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func readEntries(path string) (map[string]Coord, error) {
	entries := make(map[string]Coord)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read geocode cache: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse geocode cache %s: %w", path, err)
	}
	return entries, nil
}

// Get returns the cached coordinates of key
func (c *Cache) Get(key string) (Coord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Set stores coordinates for key in memory; Save writes them out
func (c *Cache) Set(key string, v Coord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
	c.dirty = true
}

// Len is the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save merges the in-memory entries into the file. Entries written by
// another process since OpenCache are kept unless this process has its own
// value for the same key.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock geocode cache: %w", err)
	}
	defer c.lock.Unlock()

	onDisk, err := readEntries(c.path)
	if err != nil {
		return err
	}
	for k, v := range c.entries {
		onDisk[k] = v
	}

	data, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode geocode cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".geocache-*")
	if err != nil {
		return fmt.Errorf("failed to write geocode cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write geocode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write geocode cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to replace geocode cache: %w", err)
	}

	c.entries = onDisk
	c.dirty = false
	return nil
}
