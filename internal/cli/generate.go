package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"entrate/internal/config"
	"entrate/internal/log"
	"entrate/internal/services"
	"entrate/internal/storage"
)

func newGenerateCommand() *cobra.Command {
	var (
		dbPath  string
		horizon int
		asOf    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one materialization pass against the database",
		Long: `Prunes stale auto-generated records, creates pending records for every
active schedule within the horizon and refreshes next payment dates.
Connection settings come from the environment (.env is honored).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			LoadEnvFile()
			logger := log.New(log.Config{
				Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
				Format:    os.Getenv("LOG_FORMAT"),
				Component: log.ComponentCLI,
				Output:    cmd.ErrOrStderr(),
			})
			log.SetDefault(logger)

			cfg := config.Load()
			if dbPath != "" {
				cfg.SQLiteDBPath = dbPath
			}
			if horizon > 0 {
				cfg.GenerationHorizonDays = horizon
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			now := time.Now().In(loc)
			if asOf != "" {
				if now, err = time.ParseInLocation(time.DateOnly, asOf, loc); err != nil {
					return fmt.Errorf("invalid --as-of %q: use YYYY-MM-DD", asOf)
				}
			}

			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			gen := services.NewRecordGenerator(repo, nil, loc, services.GeneratorConfig{
				HorizonDays:    cfg.GenerationHorizonDays,
				StaleAfterDays: cfg.StaleAfterDays,
			})
			result, err := gen.Run(cmd.Context(), now)
			if err != nil {
				return err
			}
			logger.Info("Materialization pass finished",
				log.FieldOperation, log.OpGenerate,
				log.FieldCount, result.Created)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sources:       %d\n", result.Sources)
			fmt.Fprintf(out, "created:       %d\n", result.Created)
			fmt.Fprintf(out, "stale deleted: %d\n", result.StaleDeleted)
			fmt.Fprintf(out, "next updated:  %d\n", result.NextUpdated)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "error: %v\n", e)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d sources failed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default SQLITE_DB_PATH)")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "days ahead to materialize (default GENERATION_HORIZON_DAYS)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluate as if today were this date")
	return cmd
}
