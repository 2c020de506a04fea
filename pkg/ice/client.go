// Package ice is a client for the ICE part registry, used to look up the
// reactions a genetic part adds to a strain.
package ice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"metabolic-model-be/pkg/logging"
)

var ErrPartNotFound = errors.New("part not found")

const sessionHeader = "X-ICE-Authentication-SessionId"

// ServiceError is an unexpected answer from ICE.
type ServiceError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ice %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger logging.Logger

	mu        sync.Mutex
	sessionID string
}

func NewClient(cfg Config, logger logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logging.OrNop(logger),
	}
}

// ReactionEquations returns the reactions recorded on the part, as a map of
// reaction id to equation. The session is renewed once when ICE rejects it.
func (c *Client) ReactionEquations(ctx context.Context, partID string) (map[string]string, error) {
	c.logger.Info("ICE", "Requesting part", map[string]interface{}{"part_id": partID})

	session, err := c.session(ctx, "")
	if err != nil {
		return nil, err
	}
	res, body, err := c.getPart(ctx, partID, session)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		c.logger.Warn("ICE", "Session rejected, re-authenticating", map[string]interface{}{"status": res.StatusCode})
		if session, err = c.session(ctx, session); err != nil {
			return nil, err
		}
		if res, body, err = c.getPart(ctx, partID, session); err != nil {
			return nil, err
		}
	}

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", partID, ErrPartNotFound)
	default:
		return nil, &ServiceError{Operation: "get part " + partID, StatusCode: res.StatusCode, Body: string(body)}
	}

	var part struct {
		References string `json:"references"`
	}
	if err := json.Unmarshal(body, &part); err != nil {
		return nil, fmt.Errorf("decode part %s: %w", partID, err)
	}
	return ParseReferences(part.References), nil
}

// ParseReferences reads "ID1: a + b --> c, ID2: ..." into a map.
func ParseReferences(references string) map[string]string {
	out := map[string]string{}
	for _, entry := range strings.Split(references, ",") {
		id, equation, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		id, equation = strings.TrimSpace(id), strings.TrimSpace(equation)
		if id != "" && equation != "" {
			out[id] = equation
		}
	}
	return out
}

func (c *Client) getPart(ctx context.Context, partID, session string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/rest/parts/"+url.PathEscape(partID), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionHeader, session)
	return c.do(req)
}

// session returns the current session id, authenticating when there is none
// or when the caller saw stale rejected.
func (c *Client) session(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" && c.sessionID != stale {
		return c.sessionID, nil
	}

	payload, err := json.Marshal(map[string]string{"email": c.cfg.Username, "password": c.cfg.Password})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/rest/accesstokens", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, body, err := c.do(req)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", &ServiceError{Operation: "authenticate", StatusCode: res.StatusCode, Body: string(body)}
	}
	var token struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(body, &token); err != nil || token.SessionID == "" {
		return "", &ServiceError{Operation: "authenticate", StatusCode: res.StatusCode, Body: "missing sessionId"}
	}
	c.sessionID = token.SessionID
	return c.sessionID, nil
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("ice request failed: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return res, body, nil
}
