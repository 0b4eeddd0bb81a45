package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_WidgetsResolveOnce(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/widgets_resolve_once.yaml")
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_WidgetsResolveOnce -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestSnapshot_CanonicalForm(t *testing.T) {
	result := NewResult()
	result.addStep("flush", nil, 1)
	result.addAction(TraceEvent{Name: "START_RESOLUTION", Selector: "getEntityRecord", Args: []any{"root", "user", 1}, Seq: 2})

	data, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"snap","trace":[{"name":"flush","seq":1,"type":"step"},`+
			`{"args":["root","user",1],"name":"START_RESOLUTION","selector":"getEntityRecord","seq":2,"type":"action"}]}`+"\n",
		string(data))
}

func TestCompareGolden(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "golden")
	result := NewResult()
	result.addStep("flush", nil, 1)

	require.NoError(t, CompareGolden(dir, "s", result, false), "missing golden passes")

	require.NoError(t, CompareGolden(dir, "s", result, true))
	_, err := os.Stat(filepath.Join(dir, "s.golden"))
	require.NoError(t, err)
	require.NoError(t, CompareGolden(dir, "s", result, false))

	result.addStep("tick", nil, 2)
	err = CompareGolden(dir, "s", result, false)
	require.ErrorIs(t, err, ErrGoldenMismatch)
}
