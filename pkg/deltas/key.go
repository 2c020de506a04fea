// Package deltas computes the cache key under which the operations derived
// from a modification request are stored.
package deltas

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key hashes the model id together with the request conditions. Object keys
// are sorted at every depth, so permuting the payload does not change the
// key; numbers keep their literal form.
func Key(modelID string, conditions interface{}) (string, error) {
	canonical, err := Canonical(map[string]interface{}{
		"model_id":   modelID,
		"conditions": conditions,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum224(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Canonical returns the compact JSON of v with sorted object keys.
func Canonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding conditions: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decoding conditions: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encoding conditions: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
