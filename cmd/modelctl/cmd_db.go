package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"metabolic-model-be/internal/entity"
	"metabolic-model-be/internal/repository/implementation"
	"metabolic-model-be/internal/repository/specification"
	"metabolic-model-be/pkg/database"
	"metabolic-model-be/pkg/metabolic"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func openDB(dsn string) (*gorm.DB, error) {
	_ = godotenv.Load()
	if dsn == "" {
		dsn = os.Getenv("DB_CONNECTION_STRING")
	}
	if dsn == "" {
		return nil, fmt.Errorf("no database: pass --dsn or set DB_CONNECTION_STRING")
	}
	return database.NewGormDBFromDSN(dsn, database.DefaultPoolConfig(), false)
}

func newImportCmd() *cobra.Command {
	var (
		dsn        string
		name       string
		biomass    string
		organismID int64
		projectID  int64
	)
	cmd := &cobra.Command{
		Use:   "import [model.json]",
		Short: "Store a cobrapy model in the Postgres model warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := metabolic.Unmarshal(data)
			if err != nil {
				return fmt.Errorf("%s is not a valid model: %w", args[0], err)
			}
			if biomass == "" {
				return fmt.Errorf("--biomass is required")
			}
			if _, ok := m.Reaction(biomass); !ok {
				return fmt.Errorf("biomass reaction %s: %w", biomass, metabolic.ErrReactionNotFound)
			}
			if name == "" {
				name = m.ID
			}

			db, err := openDB(dsn)
			if err != nil {
				return err
			}
			e := &entity.MetabolicModel{
				Name:            name,
				OrganismID:      organismID,
				BiomassReaction: biomass,
				Serialized:      data,
			}
			if projectID > 0 {
				e.ProjectID = &projectID
			}
			if err := implementation.NewMetabolicModelRepository(db).Create(cmd.Context(), e); err != nil {
				return err
			}
			color.Green("Imported %s as model %d", name, e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to DB_CONNECTION_STRING)")
	cmd.Flags().StringVar(&name, "name", "", "model name (defaults to the model id)")
	cmd.Flags().StringVar(&biomass, "biomass", "", "default biomass reaction")
	cmd.Flags().Int64Var(&organismID, "organism", 0, "organism id")
	cmd.Flags().Int64Var(&projectID, "project", 0, "owning project; 0 makes the model public")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		dsn      string
		organism int64
		limit    int
		offset   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the models in the Postgres model warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(dsn)
			if err != nil {
				return err
			}
			specs := []specification.Specification{
				specification.WithoutDocument{},
				specification.OrderBy{Field: "id"},
				specification.Pagination{Limit: limit, Offset: offset},
			}
			if organism > 0 {
				specs = append(specs, specification.ByOrganism{OrganismID: organism})
			}
			models, err := implementation.NewMetabolicModelRepository(db).FindAll(cmd.Context(), specs...)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tORGANISM\tPROJECT\tBIOMASS")
			for _, m := range models {
				project := "public"
				if !m.Public() {
					project = fmt.Sprint(*m.ProjectID)
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", m.ID, m.Name, m.OrganismID, project, m.BiomassReaction)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to DB_CONNECTION_STRING)")
	cmd.Flags().Int64Var(&organism, "organism", 0, "only models of this organism")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of models; 0 lists all")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of models to skip")
	return cmd
}
