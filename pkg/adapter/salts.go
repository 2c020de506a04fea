package adapter

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

//go:embed salts.json
var defaultSalts []byte

// Salt lists the ions and metals a medium salt dissociates into, plus the
// parts that could not be mapped to identifiers when the table was built.
type Salt struct {
	Ions               []string `json:"ions"`
	Metals             []string `json:"metals"`
	IonsMissingSmiles  []string `json:"ions_missing_smiles"`
	MetalsMissingInchi []string `json:"metals_missing_inchi"`
}

// Salts is keyed by the CHEBI id of the salt.
type Salts map[string]Salt

func DecodeSalts(r io.Reader) (Salts, error) {
	var out Salts
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode salts: %w", err)
	}
	return out, nil
}

// LoadSalts reads a salts table from disk. An empty path yields the
// built-in table.
func LoadSalts(path string) (Salts, error) {
	if path == "" {
		return DefaultSalts(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open salts table: %w", err)
	}
	defer f.Close()
	return DecodeSalts(f)
}

func DefaultSalts() Salts {
	var out Salts
	if err := json.Unmarshal(defaultSalts, &out); err != nil {
		panic(fmt.Sprintf("embedded salts table: %v", err))
	}
	return out
}
