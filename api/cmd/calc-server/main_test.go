package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcanvas/api/internal/calc"
)

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"x=4", " y = 2.5 ", "name=alice", "empty="})
	require.NoError(t, err)
	assert.Equal(t, calc.Variables{
		"x":     json.Number("4"),
		"y":     json.Number("2.5"),
		"name":  "alice",
		"empty": "",
	}, vars)
}

func TestParseVarsNonFiniteStaysText(t *testing.T) {
	vars, err := parseVars([]string{"x=4", "n=NaN", "m=inf", "h=0x1p4"})
	require.NoError(t, err)
	assert.Equal(t, "NaN", vars["n"])
	assert.Equal(t, "inf", vars["m"])
	assert.Equal(t, "0x1p4", vars["h"])

	p := calc.BuildPrompt(vars)
	assert.Contains(t, p, `"x": 4`)
	assert.Contains(t, p, `"n": "NaN"`)
}

func TestParseVarsRejectsBadPairs(t *testing.T) {
	for _, in := range []string{"x", "=4", " =4"} {
		_, err := parseVars([]string{in})
		assert.Error(t, err, in)
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["solve"])
	assert.True(t, names["runs"])
}
