package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getverbrauch/consumption-export/internal/calendar"
	"github.com/getverbrauch/consumption-export/internal/consumption"
)

// SnapshotFile pairs a file on disk with the month its name starts with.
type SnapshotFile struct {
	Path  string
	Month calendar.MonthKey
}

// SnapshotStore persists raw monthly API responses as {dir}/{YYYY-MM}{suffix}.
type SnapshotStore struct {
	dir    string
	suffix string
}

// NewSnapshotStore stores snapshots in dir with names ending in suffix,
// e.g. "-Verbrauch.json".
func NewSnapshotStore(dir, suffix string) *SnapshotStore {
	return &SnapshotStore{dir: dir, suffix: suffix}
}

// Path returns where the snapshot of month is kept.
func (s *SnapshotStore) Path(month calendar.MonthKey) string {
	return filepath.Join(s.dir, month.String()+s.suffix)
}

// Save writes the snapshot's raw payload, indented, creating the directory
// if needed. An existing file for the month is replaced.
func (s *SnapshotStore) Save(snap consumption.Snapshot) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, snap.Raw, "", "  "); err != nil {
		return "", fmt.Errorf("indent snapshot %s: %w", snap.Month, err)
	}
	buf.WriteByte('\n')

	path := s.Path(snap.Month)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", snap.Month, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("replace snapshot %s: %w", snap.Month, err)
	}
	return path, nil
}

// Load reads and decodes the snapshot stored at path.
func (s *SnapshotStore) Load(path string) (consumption.Response, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return consumption.Response{}, err
	}
	var resp consumption.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return consumption.Response{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return resp, nil
}

// List returns the snapshots in the directory, ordered by month. Names
// ending in the suffix without a YYYY-MM prefix are returned in skipped.
func (s *SnapshotStore) List() (files []SnapshotFile, skipped []string, err error) {
	return ListMonthly(s.dir, s.suffix)
}

// ListMonthly finds files in dir whose names end in suffix and start with
// YYYY-MM, ordered by month.
func ListMonthly(dir, suffix string) (files []SnapshotFile, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		month, ok := calendar.ParseMonthPrefix(name)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		files = append(files, SnapshotFile{Path: filepath.Join(dir, name), Month: month})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].Month.Before(files[j].Month) })
	return files, skipped, nil
}
