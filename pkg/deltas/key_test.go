package deltas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsOrderIndependent(t *testing.T) {
	a, err := Key("iJO1366", map[string]interface{}{"a": 1, "b": 2})
	require.NoError(t, err)
	b, err := Key("iJO1366", map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 56)

	var raw1, raw2 json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{"medium":[{"id":"x","namespace":"chebi"}],"genotype":"-b2297"}`), &raw1))
	require.NoError(t, json.Unmarshal([]byte(`{"genotype":"-b2297","medium":[{"namespace":"chebi","id":"x"}]}`), &raw2))
	k1, err := Key("iJO1366", raw1)
	require.NoError(t, err)
	k2, err := Key("iJO1366", raw2)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestKeyDistinguishesInputs(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		config interface{}
	}{
		{"other value", "iJO1366", map[string]interface{}{"a": 2}},
		{"other model", "e_coli_core", map[string]interface{}{"a": 1}},
		{"other field", "iJO1366", map[string]interface{}{"b": 1}},
	}
	base, err := Key("iJO1366", map[string]interface{}{"a": 1})
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := Key(tt.model, tt.config)
			require.NoError(t, err)
			assert.NotEqual(t, base, k)
		})
	}
}

func TestCanonical(t *testing.T) {
	out, err := Canonical(map[string]interface{}{"z": []interface{}{map[string]interface{}{"b": 1, "a": "<x>"}}, "a": 0.5})
	require.NoError(t, err)
	assert.Equal(t, `{"a":0.5,"z":[{"a":"<x>","b":1}]}`, string(out))
}
