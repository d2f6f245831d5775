package massdict

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Standard atomic weights (PubChem periodic table)
var atomicMass = map[string]float64{
	"H": 1.0080, "He": 4.00260, "Li": 7.0, "Be": 9.012183, "B": 10.81,
	"C": 12.011, "N": 14.007, "O": 15.999, "F": 18.99840316, "Ne": 20.180,
	"Na": 22.9897693, "Mg": 24.305, "Al": 26.981538, "Si": 28.085, "P": 30.97376200,
	"S": 32.07, "Cl": 35.45, "Ar": 39.9, "K": 39.0983, "Ca": 40.08,
	"Sc": 44.95591, "Ti": 47.867, "V": 50.9415, "Cr": 51.996, "Mn": 54.93804,
	"Fe": 55.84, "Co": 58.93319, "Ni": 58.693, "Cu": 63.55, "Zn": 65.4,
	"Ga": 69.723, "Ge": 72.63, "As": 74.92159, "Se": 78.97, "Br": 79.90,
	"Kr": 83.80, "Rb": 85.468, "Sr": 87.62, "Y": 88.90584, "Zr": 91.22,
	"Nb": 92.90637, "Mo": 95.95, "Ru": 101.1, "Rh": 102.9055, "Pd": 106.42,
	"Ag": 107.868, "Cd": 112.41, "In": 114.818, "Sn": 118.71, "Sb": 121.760,
	"Te": 127.6, "I": 126.9045, "Xe": 131.29, "Cs": 132.9054520, "Ba": 137.33,
	"La": 138.9055, "Ce": 140.116, "Pr": 140.90766, "Nd": 144.24, "Sm": 150.4,
	"Eu": 151.964, "Gd": 157.2, "Tb": 158.92535, "Dy": 162.500, "Ho": 164.93033,
	"Er": 167.26, "Tm": 168.93422, "Yb": 173.05, "Lu": 174.9668, "Hf": 178.49,
	"Ta": 180.9479, "W": 183.84, "Re": 186.207, "Os": 190.2, "Ir": 192.22,
	"Pt": 195.08, "Au": 196.96657, "Hg": 200.59, "Tl": 204.383, "Pb": 207,
	"Bi": 208.98040,
}

// AtomicMass returns the standard atomic weight of an element
func AtomicMass(symbol string) (float64, bool) {
	m, ok := atomicMass[symbol]
	return m, ok
}

// Composition is one element with the maximum number of atoms per cluster
type Composition struct {
	Element  string
	MaxCount int
}

// ParseComposition parses "Co:20,Ar:2" into compositions
func ParseComposition(s string) ([]Composition, error) {
	var comps []Composition
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		el, cnt, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("massdict: composition %q must be <element>:<max count>", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(cnt))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("massdict: invalid count in %q", part)
		}
		comps = append(comps, Composition{Element: strings.TrimSpace(el), MaxCount: n})
	}
	return comps, nil
}

// Generate enumerates every combination of atom counts from 0 up to the
// maximum of each element, skipping the empty cluster. Names concatenate
// <element><count> for the non-zero counts, in composition order, followed
// by the charge suffix, e.g. "Co2Ar1-".
func Generate(comps []Composition) (map[string]float64, error) {
	masses := make([]float64, len(comps))
	for i, c := range comps {
		m, ok := atomicMass[c.Element]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownElement, c.Element)
		}
		if c.MaxCount < 0 {
			return nil, fmt.Errorf("massdict: negative count for %s", c.Element)
		}
		masses[i] = m
	}

	out := make(map[string]float64)
	counts := make([]int, len(comps))
	for {
		var name strings.Builder
		mass := 0.0
		for i, n := range counts {
			if n > 0 {
				name.WriteString(comps[i].Element)
				name.WriteString(strconv.Itoa(n))
				mass += float64(n) * masses[i]
			}
		}
		if mass > 0 {
			out[name.String()+ChargeSuffix] = mass
		}

		// Advance counts like an odometer, last element fastest
		i := len(counts) - 1
		for ; i >= 0; i-- {
			counts[i]++
			if counts[i] <= comps[i].MaxCount {
				break
			}
			counts[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return out, nil
}

// File is the JSON layout written by WriteGenerated
type File struct {
	Elements []string           `json:"elements"`
	MaxCount []int              `json:"max_count"`
	Masses   map[string]float64 `json:"masses"`
}

// WriteGenerated writes a generated dictionary together with the
// composition it was built from
func WriteGenerated(w io.Writer, comps []Composition, masses map[string]float64) error {
	f := File{Masses: masses}
	for _, c := range comps {
		f.Elements = append(f.Elements, c.Element)
		f.MaxCount = append(f.MaxCount, c.MaxCount)
	}
	e := json.NewEncoder(w)
	e.SetIndent(``, `    `)
	return e.Encode(f)
}
