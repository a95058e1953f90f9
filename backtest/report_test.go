package backtest

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Non-finite metrics must survive JSON encoding: +Inf as "inf", NaN as null.
func TestReport_EncodesNonFiniteValues(t *testing.T) {
	t.Parallel()

	res := Result{
		Metrics: Metrics{
			StartEquity:  1000,
			EndEquity:    1100,
			ProfitFactor: math.Inf(1),
			Sharpe:       math.NaN(),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewReport(res).WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "inf", decoded["profit_factor"])
	assert.Nil(t, decoded["sharpe"])
	assert.InDelta(t, 1100, decoded["end_equity"].(float64), 1e-9)
}

func TestReport_NegativeInfinity(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(jsonFloat(math.Inf(-1)))
	require.NoError(t, err)
	assert.Equal(t, `"-inf"`, string(b))

	b, err = json.Marshal(jsonFloat(1.5))
	require.NoError(t, err)
	assert.Equal(t, "1.5", string(b))
}

func TestReport_SaveJSON(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/report.json"
	require.NoError(t, NewReport(Result{}).SaveJSON(path))

	var buf bytes.Buffer
	require.NoError(t, NewReport(Result{}).WriteJSON(&buf))
	assert.Contains(t, buf.String(), "generated_at")
}
