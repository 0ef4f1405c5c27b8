package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/getverbrauch/consumption-export/internal/store"
)

// CombineResult describes a written annual file.
type CombineResult struct {
	Output string
	Inputs []string
	Rows   int
}

// Combine concatenates every monthly table in dir, ordered by month, into
// {dir}/{combined}. The header is taken from the first table and all other
// header rows are dropped. Data rows are copied unchanged.
func Combine(dir, suffix, combined string, delimiter rune, logger *slog.Logger) (CombineResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if delimiter == 0 {
		delimiter = ','
	}

	files, skipped, err := store.ListMonthly(dir, suffix)
	if err != nil {
		return CombineResult{}, fmt.Errorf("list tables: %w", err)
	}
	for _, name := range skipped {
		if name != combined {
			logger.Warn("could not parse date from filename", "file", name)
		}
	}

	res := CombineResult{Output: filepath.Join(dir, combined)}
	var inputs []store.SnapshotFile
	for _, f := range files {
		if filepath.Base(f.Path) == combined {
			continue
		}
		inputs = append(inputs, f)
	}
	if len(inputs) == 0 {
		return res, ErrNoInputs
	}

	var records [][]string
	for _, f := range inputs {
		rows, err := readTable(f.Path, delimiter)
		if err != nil {
			return res, err
		}
		res.Inputs = append(res.Inputs, f.Path)
		if len(rows) == 0 {
			logger.Warn("empty table", "file", filepath.Base(f.Path))
			continue
		}
		if records == nil {
			records = append(records, rows[0])
		}
		records = append(records, rows[1:]...)
		res.Rows += len(rows) - 1
	}

	if err := writeTable(res.Output, delimiter, records); err != nil {
		return res, err
	}
	logger.Info("combined consumption file written", "output", res.Output, "files", len(res.Inputs), "rows", res.Rows)
	return res, nil
}

func readTable(path string, delimiter rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		rows = append(rows, rec)
	}
}
