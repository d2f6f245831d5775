package characterize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/524D/tofcal/internal/calib"
	"github.com/524D/tofcal/internal/massdict"
	"github.com/524D/tofcal/internal/peaks"
	"github.com/524D/tofcal/internal/waveform"
)

// unit calibration: mass = t^2
var square = calib.Params{G: 1, TOff: 0}

func testContext(t *testing.T) massdict.Context {
	t.Helper()
	d, err := massdict.New(map[string]float64{
		"X1-":  100,
		"X2-":  200,
		"Y1-":  200.5,
		"Z1-":  201,
		"X3-":  300,
		"Big-": 10000,
	})
	require.NoError(t, err)
	ctx, err := massdict.NewContext(d, "X")
	require.NoError(t, err)
	return ctx
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(5, 5))
	assert.Equal(t, 0.5, Similarity(5, 10))
	assert.Equal(t, 0.5, Similarity(10, 5))
	assert.Equal(t, 0.0, Similarity(0, 5))
	assert.Equal(t, 0.0, Similarity(0, 0))
}

func TestCharacterize(t *testing.T) {
	ctx := testContext(t)
	// Peak masses 100 (exact), 200.4 (three candidates), 250 (none)
	w := &waveform.Waveform{Time: []float64{0, 10, 0, 14.156270695349, 0, 15.811388300842}}
	s := peaks.Set{Index: []int{1, 3, 5}}

	tab := Characterize(w, s, square, ctx, DefaultPrecision)
	require.Len(t, tab.Rows, 3)
	assert.Equal(t, "X", tab.Element)

	exact := tab.Rows[0]
	assert.Equal(t, Match{"X1-", 1}, exact.Best)
	assert.Equal(t, []Match{{"X1-", 1}}, exact.Candidates)
	assert.InDelta(t, 1.0, exact.MassUnits, 1e-12)
	assert.Equal(t, 10.0, exact.Time)

	multi := tab.Rows[1]
	assert.Equal(t, "Y1-", multi.Best.Name)
	names := make([]string, len(multi.Candidates))
	for i, c := range multi.Candidates {
		names[i] = c.Name
		if i > 0 {
			assert.GreaterOrEqual(t, multi.Candidates[i-1].Similarity, c.Similarity)
		}
	}
	assert.Equal(t, []string{"Y1-", "X2-", "Z1-"}, names)

	none := tab.Rows[2]
	assert.Equal(t, Match{}, none.Best)
	assert.Empty(t, none.Candidates)

	assert.Equal(t, []string{"X1-", "Y1-", ""}, tab.BestNames())
	assert.Equal(t, []int{1, 3, 5}, tab.Peaks())
	assert.Equal(t, 3, tab.MaxCandidates())
	assert.Equal(t, 2, tab.Matched())
}

func TestCharacterizeTieUsesDictionaryOrder(t *testing.T) {
	d, err := massdict.New(map[string]float64{"B1-": 50, "A1-": 50, "C1-": 60})
	require.NoError(t, err)
	ctx, err := massdict.NewContext(d, "A")
	require.NoError(t, err)
	w := &waveform.Waveform{Time: []float64{7.0710678118654755}}
	tab := Characterize(w, peaks.Set{Index: []int{0}}, square, ctx, DefaultPrecision)
	assert.Equal(t, "A1-", tab.Rows[0].Best.Name)
	assert.Equal(t, "A1-", tab.Rows[0].Candidates[0].Name)
	assert.Equal(t, "B1-", tab.Rows[0].Candidates[1].Name)
}

func TestCharacterizeEmpty(t *testing.T) {
	ctx := testContext(t)
	tab := Characterize(&waveform.Waveform{}, peaks.Set{}, square, ctx, DefaultPrecision)
	assert.Empty(t, tab.Rows)
	assert.Equal(t, 0, tab.MaxCandidates())
}

func TestCharacterizeDeterministic(t *testing.T) {
	ctx := testContext(t)
	w := &waveform.Waveform{Time: []float64{10, 14.15, 14.16, 17.3}}
	s := peaks.Set{Index: []int{0, 1, 2, 3}}
	p := calib.Params{G: 1.001, TOff: 0.01}
	first := Characterize(w, s, p, ctx, 0.05)
	second := Characterize(w, s, p, ctx, 0.05)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated characterization differs (-first +second):\n%s", diff)
	}
}
