// Package metabolictest provides a small central-carbon network for tests.
//
// With glucose uptake capped at 10, biomass (BIOMASS_Ec_core, g6p + accoa)
// peaks at 20/3 with PFK carrying 10/3. PTAr is catalysed by b2297 alone.
package metabolictest

import (
	_ "embed"

	"metabolic-model-be/pkg/metabolic"
)

//go:embed core.json
var coreJSON []byte

const (
	ModelID   = "e_coli_toy"
	BiomassID = "BIOMASS_Ec_core"
)

// CoreJSON returns the raw cobrapy document.
func CoreJSON() []byte {
	return append([]byte(nil), coreJSON...)
}

// Core returns a fresh copy of the network.
func Core() *metabolic.Model {
	m, err := metabolic.Unmarshal(coreJSON)
	if err != nil {
		panic(err)
	}
	return m
}
