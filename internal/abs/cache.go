package abs

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// FileCache keeps downloaded releases on disk. Published releases never
// change, so entries do not expire; an empty file counts as absent.
type FileCache struct {
	dir string
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string) *FileCache {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("abs: could not create cache directory %s: %v", dir, err)
	}
	return &FileCache{dir: dir}
}

func (c *FileCache) Dir() string {
	return c.dir
}

// Path returns where name is, or would be, cached.
func (c *FileCache) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// Has reports whether a non-empty file is cached under name.
func (c *FileCache) Has(name string) bool {
	info, err := os.Stat(c.Path(name))
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// Set writes data via a temporary file so a partial download never looks
// cached.
func (c *FileCache) Set(name string, data []byte) (string, error) {
	path := c.Path(name)
	tmp, err := os.CreateTemp(c.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return path, nil
}

// List returns the names of cached files.
func (c *FileCache) List() []string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == ".tmp" {
			continue
		}
		names = append(names, entry.Name())
	}
	return names
}
