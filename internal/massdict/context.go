package massdict

import (
	"fmt"
	"strconv"
	"strings"
)

// Context bundles the read-only state that the calibration and
// characterization steps share: the dictionary and the reference element.
type Context struct {
	Dict        *Dictionary
	Element     string  // Reference element symbol, e.g. "Co"
	ElementMass float64 // Mass of the "<Element>1-" entry
}

// NewContext selects the reference element. Its single atom entry
// ("<El>1-") must be present in the dictionary.
func NewContext(d *Dictionary, element string) (Context, error) {
	if d == nil {
		return Context{}, ErrEmpty
	}
	m, ok := d.Mass(AtomName(element))
	if !ok {
		return Context{}, fmt.Errorf("%w: no entry %q", ErrUnknownElement, AtomName(element))
	}
	return Context{Dict: d, Element: element, ElementMass: m}, nil
}

// AtomName returns the species name of a single atom of element
func AtomName(element string) string {
	return ClusterName(element, 1)
}

// ClusterName returns the name of a pure cluster of n atoms
func ClusterName(element string, n int) string {
	return element + strconv.Itoa(n) + ChargeSuffix
}

// IsPure reports whether name is a pure cluster of the reference element
func (c Context) IsPure(name string) bool {
	_, ok := PureCluster(name, c.Element)
	return ok
}

// PureCluster parses names like "Co12-" and returns the atom count.
// Only the exact form <element><count>- matches, so "C" does not claim
// "Co3-" and mixed clusters such as "Co2Ar1-" are rejected.
func PureCluster(name, element string) (int, bool) {
	if element == "" || !strings.HasPrefix(name, element) {
		return 0, false
	}
	rest := strings.TrimPrefix(name, element)
	if !strings.HasSuffix(rest, ChargeSuffix) {
		return 0, false
	}
	digits := strings.TrimSuffix(rest, ChargeSuffix)
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
