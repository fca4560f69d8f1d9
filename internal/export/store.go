// SPDX-License-Identifier: MIT
package export

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"tuner/internal/session"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// storeFile is the on-disk layout of a FileStore.
type storeFile struct {
	Sessions []session.Report `yaml:"sessions"`
}

// FileStore keeps every exported report in a YAML file and computes
// tendencies from them.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Name() string {
	return "file " + s.path
}

// Export appends the report. A report with an already stored session ID
// replaces the stored one.
func (s *FileStore) Export(ctx context.Context, report session.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.load()
	if err != nil {
		return err
	}

	idx := slices.IndexFunc(data.Sessions, func(r session.Report) bool {
		return r.SessionID == report.SessionID
	})
	if idx >= 0 {
		data.Sessions[idx] = report
	} else {
		data.Sessions = append(data.Sessions, report)
	}
	return s.save(data)
}

// Sessions returns every stored report.
func (s *FileStore) Sessions() ([]session.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return data.Sessions, nil
}

// Tendencies returns, per note, the count-weighted mean cents over all
// stored sessions of the instrument, rounded to two decimals. Sharpest
// notes come first.
func (s *FileStore) Tendencies(ctx context.Context, instrumentID int) ([]Tendency, error) {
	sessions, err := s.Sessions()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type series struct {
		means   []float64
		weights []float64
		total   int
	}
	byNote := make(map[string]*series)
	for _, r := range sessions {
		if r.InstrumentID != instrumentID {
			continue
		}
		for _, n := range r.Notes {
			if n.Count <= 0 {
				continue
			}
			sr := byNote[n.Note]
			if sr == nil {
				sr = &series{}
				byNote[n.Note] = sr
			}
			sr.means = append(sr.means, n.MeanCents)
			sr.weights = append(sr.weights, float64(n.Count))
			sr.total += n.Count
		}
	}

	out := make([]Tendency, 0, len(byNote))
	for note, sr := range byNote {
		out = append(out, Tendency{
			Note:         note,
			InstrumentID: instrumentID,
			MeanCents:    math.Round(stat.Mean(sr.means, sr.weights)*100) / 100,
			TotalSamples: sr.total,
		})
	}
	slices.SortFunc(out, func(a, b Tendency) int {
		if c := cmp.Compare(b.MeanCents, a.MeanCents); c != 0 {
			return c
		}
		return cmp.Compare(a.Note, b.Note)
	})
	return out, nil
}

func (s *FileStore) load() (storeFile, error) {
	var data storeFile

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("failed to read session store: %w", err)
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("failed to parse session store %s: %w", s.path, err)
	}
	return data, nil
}

// save replaces the store through a temporary file.
func (s *FileStore) save(data storeFile) error {
	raw, err := yaml.Marshal(&data)
	if err != nil {
		return fmt.Errorf("failed to encode session store: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write session store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session store: %w", err)
	}
	return nil
}

var (
	_ Exporter       = (*FileStore)(nil)
	_ TendencySource = (*FileStore)(nil)
)
