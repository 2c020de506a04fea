package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSource serves "<dir>/<id>.json" cobrapy documents. An optional
// "<id>.meta.json" next to it holds the remaining Record fields; without it
// the biomass reaction is the single objective reaction of the model.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Fetch(ctx context.Context, modelID string, caller Caller) (*Record, error) {
	if modelID == "" || strings.ContainsAny(modelID, `/\`) || strings.HasPrefix(modelID, ".") {
		return nil, fmt.Errorf("model %q: %w", modelID, ErrModelNotFound)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, modelID+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("model %s: %w", modelID, ErrModelNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", modelID, err)
	}

	rec := &Record{}
	meta, err := os.ReadFile(filepath.Join(s.dir, modelID+".meta.json"))
	switch {
	case err == nil:
		if err := json.Unmarshal(meta, rec); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", modelID, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read metadata of %s: %w", modelID, err)
	}
	rec.ID = ID(modelID)
	rec.Serialized = data
	if rec.BiomassReaction == "" {
		rec.BiomassReaction = objectiveReaction(data)
	}
	return rec, nil
}

func objectiveReaction(doc []byte) string {
	var partial struct {
		Reactions []struct {
			ID                   string  `json:"id"`
			ObjectiveCoefficient float64 `json:"objective_coefficient"`
		} `json:"reactions"`
	}
	if err := json.Unmarshal(doc, &partial); err != nil {
		return ""
	}
	found := ""
	for _, r := range partial.Reactions {
		if r.ObjectiveCoefficient != 0 {
			if found != "" {
				return ""
			}
			found = r.ID
		}
	}
	return found
}
