// Package warehouse fetches wild-type models and keeps each of them loaded
// once per process. Requests work on leased copies so the loaded models are
// never modified.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrModelNotFound = errors.New("model not found")
	ErrUnauthorized  = errors.New("model requires authentication")
	ErrForbidden     = errors.New("model belongs to a project the caller is not a member of")
)

// ID accepts both JSON numbers and strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Record is a model as stored in the warehouse. ProjectID is nil for public
// models.
type Record struct {
	ID              ID              `json:"id"`
	Name            string          `json:"name"`
	OrganismID      ID              `json:"organism_id"`
	ProjectID       *int64          `json:"project_id"`
	BiomassReaction string          `json:"default_biomass_reaction"`
	Serialized      json.RawMessage `json:"model_serialized"`
}

// Caller identifies who asks for a model.
type Caller struct {
	// Token is the raw bearer token, forwarded to remote warehouses.
	Token    string
	Projects []int64
}

func (c Caller) Authenticated() bool { return c.Token != "" }

func (c Caller) Member(project int64) bool {
	for _, p := range c.Projects {
		if p == project {
			return true
		}
	}
	return false
}

// Authorize checks that the caller may read the record.
func Authorize(rec *Record, caller Caller) error {
	if rec.ProjectID == nil {
		return nil
	}
	if !caller.Authenticated() {
		return fmt.Errorf("model %s: %w", rec.ID, ErrUnauthorized)
	}
	if !caller.Member(*rec.ProjectID) {
		return fmt.Errorf("model %s, project %s: %w", rec.ID, strconv.FormatInt(*rec.ProjectID, 10), ErrForbidden)
	}
	return nil
}

// Source loads model records.
type Source interface {
	Fetch(ctx context.Context, modelID string, caller Caller) (*Record, error)
}
