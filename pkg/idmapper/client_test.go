package idmapper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var q queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, queryRequest{IDs: []string{"MNXM1"}, DBFrom: "mnx", DBTo: "bigg", Type: "Metabolite"}, q)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ids": map[string][]string{"MNXM1": {"h"}}})
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, 0, nil).Map(context.Background(), []string{"MNXM1"}, "mnx", "bigg", "Metabolite")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"MNXM1": {"h"}}, out)
}

func TestMapErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, nil)
	_, err := c.Map(context.Background(), []string{"x"}, "mnx", "bigg", "Reaction")
	assert.ErrorContains(t, err, "status 502")

	out, err := c.Map(context.Background(), nil, "mnx", "bigg", "Reaction")
	require.NoError(t, err)
	assert.Empty(t, out)
}
