package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"metabolic-model-be/pkg/logging"
)

// HTTPSource reads models from the model warehouse service.
type HTTPSource struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

func NewHTTPSource(baseURL string, timeout time.Duration, logger logging.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{baseURL: baseURL, http: &http.Client{Timeout: timeout}, logger: logging.OrNop(logger)}
}

func (s *HTTPSource) Fetch(ctx context.Context, modelID string, caller Caller) (*Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models/"+url.PathEscape(modelID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if caller.Token != "" {
		req.Header.Set("Authorization", "Bearer "+caller.Token)
	}

	start := time.Now()
	res, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model warehouse request failed: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("model %s: %w", modelID, ErrUnauthorized)
	case http.StatusForbidden:
		return nil, fmt.Errorf("model %s: %w", modelID, ErrForbidden)
	case http.StatusNotFound:
		return nil, fmt.Errorf("model %s: %w", modelID, ErrModelNotFound)
	default:
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("model warehouse error: status %d, body: %s", res.StatusCode, string(body))
	}

	var rec Record
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", modelID, err)
	}
	s.logger.Info("WAREHOUSE", "Fetched model", map[string]interface{}{
		"model_id": modelID,
		"elapsed":  time.Since(start).String(),
	})
	return &rec, nil
}
