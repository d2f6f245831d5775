// Package massdict holds the dictionary of known species masses and the
// reference element context shared by calibration and characterization.
package massdict

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
)

// ChargeSuffix ends every species name produced by this package
const ChargeSuffix = "-"

var (
	// ErrUnknownElement means the element has no "<El>1-" entry or no known atomic mass
	ErrUnknownElement = errors.New("massdict: unknown element")
	// ErrInvalidMass means a dictionary entry is not a positive finite number
	ErrInvalidMass = errors.New("massdict: invalid mass")
	// ErrEmpty means the dictionary has no entries
	ErrEmpty = errors.New("massdict: empty dictionary")
)

// Species is a named entry of the dictionary
type Species struct {
	Name string
	Mass float64 // amu
}

// Dictionary is an immutable lookup table of species masses.
// Entries are ordered by ascending mass, then name.
type Dictionary struct {
	entries []Species
	byName  map[string]int
}

// New builds a dictionary from a name to mass map
func New(masses map[string]float64) (*Dictionary, error) {
	if len(masses) == 0 {
		return nil, ErrEmpty
	}
	d := &Dictionary{
		entries: make([]Species, 0, len(masses)),
		byName:  make(map[string]int, len(masses)),
	}
	for name, m := range masses {
		if !(m > 0) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("%w: %s = %v", ErrInvalidMass, name, m)
		}
		d.entries = append(d.entries, Species{Name: name, Mass: m})
	}
	sort.Slice(d.entries, func(i, j int) bool {
		if d.entries[i].Mass != d.entries[j].Mass {
			return d.entries[i].Mass < d.entries[j].Mass
		}
		return d.entries[i].Name < d.entries[j].Name
	})
	for i, s := range d.entries {
		d.byName[s.Name] = i
	}
	return d, nil
}

// Len returns the number of species
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// At returns the i-th species in dictionary order
func (d *Dictionary) At(i int) Species {
	return d.entries[i]
}

// Mass returns the mass of a species
func (d *Dictionary) Mass(name string) (float64, bool) {
	i, ok := d.byName[name]
	if !ok {
		return 0, false
	}
	return d.entries[i].Mass, true
}

// Read decodes a JSON dictionary. Three layouts are accepted:
//
//	{"Co1-": 58.93, ...}
//	{"elements": [...], "max_count": [...], "masses": {...}}
//	[{"elements": "...", "max_count": "..."}, {"masses": {...}}]
func Read(r io.Reader) (*Dictionary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	var masses map[string]float64
	switch data[0] {
	case '[':
		var parts []map[string]json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil {
			return nil, fmt.Errorf("massdict: %w", err)
		}
		for _, p := range parts {
			if raw, ok := p["masses"]; ok {
				if err := json.Unmarshal(raw, &masses); err != nil {
					return nil, fmt.Errorf("massdict: masses: %w", err)
				}
			}
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("massdict: %w", err)
		}
		if raw, ok := obj["masses"]; ok {
			if err := json.Unmarshal(raw, &masses); err != nil {
				return nil, fmt.Errorf("massdict: masses: %w", err)
			}
		} else {
			masses = make(map[string]float64, len(obj))
			for name, raw := range obj {
				m, err := strconv.ParseFloat(string(raw), 64)
				if err != nil {
					return nil, fmt.Errorf("%w: %s = %s", ErrInvalidMass, name, raw)
				}
				masses[name] = m
			}
		}
	default:
		return nil, fmt.Errorf("massdict: unrecognized JSON layout")
	}
	return New(masses)
}

// Load reads a JSON dictionary file
func Load(filename string) (*Dictionary, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return d, nil
}
