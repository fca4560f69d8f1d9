// SPDX-License-Identifier: MIT
package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tuner/internal/session"
)

var clarinet = session.Meta{Instrument: "Clarinet", InstrumentID: 1}

func TestLoad_MissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "instruments.yaml"), clarinet)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := c.Current(); got != clarinet {
		t.Errorf("Current() = %+v, want %+v", got, clarinet)
	}
	if got := c.Instruments(); len(got) != 1 || got[0].Name != "Clarinet" {
		t.Errorf("Instruments() = %+v", got)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	content := `
instruments:
  - id: 4
    name: Oboe
  - id: 2
    name: Flute
current: 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path, clarinet)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := c.Current(); got != (session.Meta{Instrument: "Oboe", InstrumentID: 4}) {
		t.Errorf("Current() = %+v", got)
	}
	want := []Instrument{{ID: 2, Name: "Flute"}, {ID: 4, Name: "Oboe"}}
	if got := c.Instruments(); !reflect.DeepEqual(got, want) {
		t.Errorf("Instruments() = %+v, want %+v", got, want)
	}
}

func TestLoad_CurrentNotListed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	os.WriteFile(path, []byte("instruments:\n  - id: 2\n    name: Flute\ncurrent: 9\n"), 0o644)

	c, err := Load(path, clarinet)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := c.Current().InstrumentID; got != 2 {
		t.Errorf("Current().InstrumentID = %d, want 2", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed": "instruments: [",
		"empty":     "current: 1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "instruments.yaml")
			os.WriteFile(path, []byte(content), 0o644)
			if _, err := Load(path, clarinet); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAddSetCurrentSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "instruments.yaml")
	c, _ := Load(path, clarinet)

	sax, err := c.Add("  Alto Sax ")
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if sax != (Instrument{ID: 2, Name: "Alto Sax"}) {
		t.Errorf("Add = %+v", sax)
	}
	if _, err := c.Add("clarinet"); !errors.Is(err, ErrDuplicateInstrument) {
		t.Errorf("duplicate Add error = %v", err)
	}
	if _, err := c.Add(" "); err == nil {
		t.Error("empty name should fail")
	}

	if err := c.SetCurrent(7); !errors.Is(err, ErrUnknownInstrument) {
		t.Errorf("SetCurrent(7) error = %v", err)
	}
	if err := c.SetCurrent(sax.ID); err != nil {
		t.Fatalf("SetCurrent error: %v", err)
	}
	if err := c.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	reloaded, err := Load(path, clarinet)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if got := reloaded.Current(); got != (session.Meta{Instrument: "Alto Sax", InstrumentID: 2}) {
		t.Errorf("reloaded Current() = %+v", got)
	}
	if n := len(reloaded.Instruments()); n != 2 {
		t.Errorf("reloaded %d instruments, want 2", n)
	}
}
