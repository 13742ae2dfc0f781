package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceSnapshot_Marshal(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "aborted",
		Passes:       []PassTrace{{Pass: 1, Error: "STORE_UNAVAILABLE", Merged: []string{}}},
	}

	data, err := snapshot.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{
  "scenario_name": "aborted",
  "passes": [
    {
      "pass": 1,
      "error": "STORE_UNAVAILABLE",
      "merged": []
    }
  ]
}
`, string(data))
}
