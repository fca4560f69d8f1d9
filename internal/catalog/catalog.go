// SPDX-License-Identifier: MIT
/*
Package catalog keeps the list of instruments a player practices and which
one new sessions are recorded against. The catalog is a small YAML file:

	instruments:
	  - id: 1
	    name: Clarinet
	current: 1
*/
package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	applog "tuner/internal/log"
	"tuner/internal/session"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownInstrument is returned when an ID is not in the catalog.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrDuplicateInstrument is returned by Add for a name already present.
	ErrDuplicateInstrument = errors.New("instrument already exists")
)

// Instrument is one catalog entry.
type Instrument struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type catalogFile struct {
	Instruments []Instrument `yaml:"instruments"`
	Current     int          `yaml:"current"`
}

// Catalog is an in-memory copy of the catalog file. It is not safe for
// concurrent use.
type Catalog struct {
	path string
	data catalogFile
}

// Load reads the catalog at path. A missing file yields a catalog holding
// only the fallback instrument, selected.
func Load(path string, fallback session.Meta) (*Catalog, error) {
	c := &Catalog{path: path}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		applog.Debugf("Catalog: %s not found, using %s", path, fallback.Instrument)
		c.data = catalogFile{
			Instruments: []Instrument{{ID: fallback.InstrumentID, Name: fallback.Instrument}},
			Current:     fallback.InstrumentID,
		}
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	if err := yaml.Unmarshal(raw, &c.data); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if len(c.data.Instruments) == 0 {
		return nil, fmt.Errorf("catalog %s lists no instruments", path)
	}
	if _, ok := c.find(c.data.Current); !ok {
		applog.Warnf("Catalog: current instrument %d not listed, using %s",
			c.data.Current, c.data.Instruments[0].Name)
		c.data.Current = c.data.Instruments[0].ID
	}
	return c, nil
}

// Save writes the catalog back to its file.
func (c *Catalog) Save() error {
	raw, err := yaml.Marshal(&c.data)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// Instruments returns the entries ordered by ID.
func (c *Catalog) Instruments() []Instrument {
	out := slices.Clone(c.data.Instruments)
	slices.SortFunc(out, func(a, b Instrument) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Current returns the session metadata of the selected instrument.
func (c *Catalog) Current() session.Meta {
	inst, _ := c.find(c.data.Current)
	return session.Meta{Instrument: inst.Name, InstrumentID: inst.ID}
}

// SetCurrent selects the instrument with the given ID.
func (c *Catalog) SetCurrent(id int) error {
	if _, ok := c.find(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownInstrument, id)
	}
	c.data.Current = id
	return nil
}

// Add appends an instrument with the next free ID. Names are compared
// case-insensitively.
func (c *Catalog) Add(name string) (Instrument, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Instrument{}, errors.New("instrument name is empty")
	}
	nextID := 1
	for _, inst := range c.data.Instruments {
		if strings.EqualFold(inst.Name, name) {
			return Instrument{}, fmt.Errorf("%w: %s", ErrDuplicateInstrument, inst.Name)
		}
		nextID = max(nextID, inst.ID+1)
	}

	inst := Instrument{ID: nextID, Name: name}
	c.data.Instruments = append(c.data.Instruments, inst)
	return inst, nil
}

func (c *Catalog) find(id int) (Instrument, bool) {
	i := slices.IndexFunc(c.data.Instruments, func(inst Instrument) bool { return inst.ID == id })
	if i < 0 {
		return Instrument{}, false
	}
	return c.data.Instruments[i], true
}
