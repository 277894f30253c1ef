package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	diskFileSuffix = ".cache"
	diskTempPrefix = ".tmp-"
)

// DiskTier stores one file per key in a directory. The file name is the
// SHA-256 hex digest of the key, so names stay stable across runs; endpoint
// keys are digests already and name their file directly. Each file holds a
// JSON record with the original key and the Entry envelope.
type DiskTier struct {
	dir string
}

// diskRecord is the on-disk file layout.
type diskRecord struct {
	Key   string `json:"key"`
	Entry *Entry `json:"entry"`
}

// NewDiskTier creates the cache directory if needed.
func NewDiskTier(dir string) (*DiskTier, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &DiskTier{dir: dir}, nil
}

// Name implements Tier.
func (d *DiskTier) Name() string { return "disk" }

// Dir returns the cache directory.
func (d *DiskTier) Dir() string { return d.dir }

func (d *DiskTier) path(key string) string {
	return filepath.Join(d.dir, fileNameForKey(key))
}

// Load implements Tier.
func (d *DiskTier) Load(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := readRecord(d.path(key))
	if err != nil {
		return nil, err
	}
	if record.Key != key {
		return nil, ErrNotFound
	}
	return record.Entry, nil
}

// Save implements Tier. The file is written to a temporary name and renamed
// into place so readers never observe a partial record.
func (d *DiskTier) Save(ctx context.Context, key string, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(diskRecord{Key: key, Entry: entry})
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, diskTempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, d.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Delete implements Tier.
func (d *DiskTier) Delete(_ context.Context, key string) error {
	if err := os.Remove(d.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Clear implements Tier.
func (d *DiskTier) Clear(ctx context.Context) error {
	files, err := d.files()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove cache file: %w", err)
		}
	}
	return nil
}

// RemoveExpired implements Tier.
func (d *DiskTier) RemoveExpired(ctx context.Context, now time.Time) (int, error) {
	files, err := d.files()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		// Only expired or undecodable files go; unreadable ones are kept.
		record, err := readRecord(f.path)
		switch {
		case err == nil && !record.Entry.ExpiresAt.Before(now):
			continue
		case err != nil && !errors.Is(err, ErrInvalidEntry):
			continue
		}

		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove cache file: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Usage implements Tier.
func (d *DiskTier) Usage(_ context.Context) (Usage, error) {
	files, err := d.files()
	if err != nil {
		return Usage{}, err
	}

	var usage Usage
	for _, f := range files {
		usage.Entries++
		usage.Bytes += f.size
	}
	return usage, nil
}

// Trim implements Trimmer by removing the oldest files first.
func (d *DiskTier) Trim(ctx context.Context, maxBytes int64) (int, error) {
	if maxBytes <= 0 {
		return 0, nil
	}

	files, err := d.files()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= maxBytes {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	removed := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove cache file: %w", err)
		}
		total -= f.size
		removed++
	}
	return removed, nil
}

type diskFile struct {
	path    string
	size    int64
	modTime time.Time
}

// files lists the cache files of the directory, skipping temp files.
func (d *DiskTier) files() ([]diskFile, error) {
	dirEntries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache directory: %w", err)
	}

	files := make([]diskFile, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, diskFileSuffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		files = append(files, diskFile{
			path:    filepath.Join(d.dir, name),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return files, nil
}

func readRecord(path string) (*diskRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var record diskRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if record.Entry == nil {
		return nil, fmt.Errorf("%w: missing entry", ErrInvalidEntry)
	}
	return &record, nil
}
