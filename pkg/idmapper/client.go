// Package idmapper translates identifiers between namespaces through the
// id-mapper service.
package idmapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"metabolic-model-be/pkg/logging"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}, logger: logging.OrNop(logger)}
}

type queryRequest struct {
	IDs    []string `json:"ids"`
	DBFrom string   `json:"dbFrom"`
	DBTo   string   `json:"dbTo"`
	Type   string   `json:"type"`
}

type queryResponse struct {
	IDs map[string][]string `json:"ids"`
}

// Map returns, for each input id that the service knows, its identifiers in
// the target namespace. kind is "Metabolite" or "Reaction".
func (c *Client) Map(ctx context.Context, ids []string, from, to, kind string) (map[string][]string, error) {
	if len(ids) == 0 {
		return map[string][]string{}, nil
	}
	payload, err := json.Marshal(queryRequest{IDs: ids, DBFrom: from, DBTo: to, Type: kind})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("id-mapper request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("id-mapper error: status %d, body: %s", res.StatusCode, string(body))
	}

	var out queryResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode id-mapper response: %w", err)
	}
	if out.IDs == nil {
		out.IDs = map[string][]string{}
	}
	c.logger.Debug("IDMAPPER", "Mapped identifiers", map[string]interface{}{
		"from": from, "to": to, "requested": len(ids), "mapped": len(out.IDs),
	})
	return out.IDs, nil
}
