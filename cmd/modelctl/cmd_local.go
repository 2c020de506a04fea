package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"metabolic-model-be/internal/dto"
	"metabolic-model-be/pkg/deltas"
	"metabolic-model-be/pkg/flux"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"
	"metabolic-model-be/pkg/solver"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var (
		opsPath string
		method  string
		biomass string
		top     int
	)
	cmd := &cobra.Command{
		Use:   "simulate [model.json]",
		Short: "Simulate a cobrapy model file, optionally after replaying an operation log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(args[0], opsPath)
			if err != nil {
				return err
			}
			parsed, err := flux.ParseMethod(method)
			if err != nil {
				return err
			}
			res, err := flux.NewEngine(solver.NewSimplex()).Simulate(cmd.Context(), m, flux.Request{BiomassID: biomass, Method: parsed})
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res, top)
			return nil
		},
	}
	cmd.Flags().StringVar(&opsPath, "ops", "", "operation log to replay first (JSON array)")
	cmd.Flags().StringVar(&method, "method", "fba", "fba, pfba, fva, pfba-fva, moma or lmoma")
	cmd.Flags().StringVar(&biomass, "biomass", "", "biomass reaction reported as the growth rate")
	cmd.Flags().IntVar(&top, "top", 10, "number of largest fluxes to print")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "replay [model.json] [ops.json]",
		Short: "Apply an operation log to a model file and write the modified model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(args[0], args[1])
			if err != nil {
				return err
			}
			data, err := m.MarshalJSON()
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			color.Green("Wrote %s", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file")
	return cmd
}

func newKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key [model-id] [request.json]",
		Short: "Print the delta key a modification request is stored under",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := deltaKey(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

// deltaKey reads a modification request (medium, genotype, growth_rate,
// measurements) and computes its key.
func deltaKey(modelID, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var req dto.ModifyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return deltas.Key(modelID, req.Conditions())
}

func loadModel(modelPath, opsPath string) (*metabolic.Model, error) {
	m, err := metabolic.LoadFile(modelPath)
	if err != nil {
		return nil, err
	}
	if opsPath == "" {
		return m, nil
	}
	data, err := os.ReadFile(opsPath)
	if err != nil {
		return nil, err
	}
	var ops []operations.Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("decode %s: %w", opsPath, err)
	}
	if err := operations.Apply(m, ops); err != nil {
		return nil, err
	}
	return m, nil
}

func printResult(w io.Writer, res *flux.Result, top int) {
	status := color.New(color.FgGreen).SprintFunc()
	if res.Status != solver.Optimal {
		status = color.New(color.FgRed).SprintFunc()
	}
	fmt.Fprintf(w, "method:      %s\n", res.Method)
	fmt.Fprintf(w, "status:      %s\n", status(res.Status))
	fmt.Fprintf(w, "growth rate: %.6g\n", res.GrowthRate)

	if res.Method.Ranged() {
		ids := make([]string, 0, len(res.Ranges))
		for id := range res.Ranges {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "  %-20s [%.6g, %.6g]\n", id, res.Ranges[id].Lower, res.Ranges[id].Upper)
		}
		return
	}
	for _, id := range largest(res.Fluxes, top) {
		fmt.Fprintf(w, "  %-20s %.6g\n", id, res.Fluxes[id])
	}
}

// largest returns up to n reaction ids ordered by absolute flux.
func largest(fluxes map[string]float64, n int) []string {
	ids := make([]string, 0, len(fluxes))
	for id := range fluxes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := abs(fluxes[ids[i]]), abs(fluxes[ids[j]])
		if a != b {
			return a > b
		}
		return ids[i] < ids[j]
	})
	if n >= 0 && len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

