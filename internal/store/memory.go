package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/getverbrauch/consumption-export/internal/validate"
)

var (
	// ErrNotFound is returned when no report is available for a file.
	ErrNotFound = errors.New("no validation report for file")
)

// ReportHistory holds a time-ordered list of validation results for one file.
type ReportHistory struct {
	Results []validate.FileResult
}

// ReportStore is a concurrency-safe in-memory record of validation results.
type ReportStore struct {
	mu sync.RWMutex

	// key: file name, value: history
	data map[string]*ReportHistory

	// retention configuration
	maxHistory int           // max number of results per file
	maxAge     time.Duration // optional max age for results
	now        func() time.Time
}

// NewReportStore creates a new ReportStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewReportStore(maxHistory int, maxAge time.Duration) *ReportStore {
	return &ReportStore{
		data:       make(map[string]*ReportHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save appends results and enforces retention per file.
func (s *ReportStore) Save(results ...validate.FileResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range results {
		history, ok := s.data[res.File]
		if !ok {
			history = &ReportHistory{}
			s.data[res.File] = history
		}
		history.Results = append(history.Results, res)
		s.enforceRetention(history)
	}
}

func (s *ReportStore) enforceRetention(history *ReportHistory) {
	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Results) > s.maxHistory {
		over := len(history.Results) - s.maxHistory
		history.Results = history.Results[over:]
	}

	// Enforce retention by age; the newest result is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Results)-1; i++ {
			if !history.Results[i].CheckedAt.Before(cutoff) {
				break
			}
		}
		history.Results = history.Results[i:]
	}
}

// Latest returns the most recent result for a file.
func (s *ReportStore) Latest(file string) (validate.FileResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[file]
	if !ok || len(history.Results) == 0 {
		return validate.FileResult{}, ErrNotFound
	}
	return history.Results[len(history.Results)-1], nil
}

// History returns all retained results for a file, oldest first.
func (s *ReportStore) History(file string) ([]validate.FileResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[file]
	if !ok || len(history.Results) == 0 {
		return nil, ErrNotFound
	}
	out := make([]validate.FileResult, len(history.Results))
	copy(out, history.Results)
	return out, nil
}

// LatestAll returns the newest result of every file, ordered by file name.
func (s *ReportStore) LatestAll() []validate.FileResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]validate.FileResult, 0, len(s.data))
	for _, h := range s.data {
		if len(h.Results) > 0 {
			out = append(out, h.Results[len(h.Results)-1])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}
