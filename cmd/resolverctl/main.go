package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/config"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/dataset"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/db"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matchconfig"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matching"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/repository"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/service"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	sources  matchconfig.Sources
	logLevel string
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "resolverctl",
		Short:         "Organization entity resolution toolkit",
		Long:          `Score organization names against each other, normalize countries and entity names, and match CSV datasets`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so JSON output on stdout stays parseable
			logger.InitWithWriter(logLevel, cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&sources.MatchingPath, "matching-config", os.Getenv("MATCHING_CONFIG_PATH"), "matching configuration document (default: embedded)")
	flags.StringVar(&sources.CountriesPath, "countries-config", os.Getenv("COUNTRIES_CONFIG_PATH"), "country configuration document (default: embedded)")
	flags.StringVar(&sources.AlgorithmsPath, "algorithms-config", os.Getenv("ALGORITHMS_CONFIG_PATH"), "algorithm configuration document (default: embedded)")
	flags.StringVar(&logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(createValidateCmd())
	rootCmd.AddCommand(createScoreCmd())
	rootCmd.AddCommand(createEquivalentCmd())
	rootCmd.AddCommand(createNormalizeCountryCmd())
	rootCmd.AddCommand(createNormalizeEntityCmd())
	rootCmd.AddCommand(createMatchFileCmd())
	rootCmd.AddCommand(createImportCmd())
	rootCmd.AddCommand(createConvertCmd())

	return rootCmd
}

func newResolver() (*service.ResolverService, error) {
	// One-shot commands gain nothing from the cache
	return service.NewResolverService(matchconfig.NewStore(sources), matching.WithoutCache())
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func createValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the three configuration documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := matchconfig.NewStore(sources).Snapshot()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			result := service.ValidationResult{Valid: true, Version: snap.Version, Errors: []string{}}
			var verr matchconfig.ValidationErrors
			if err := snap.Validate(); errors.As(err, &verr) {
				result.Valid = false
				result.Errors = verr
			}
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if !result.Valid {
				return errors.New("configuration is invalid")
			}
			return nil
		},
	}
}

func createScoreCmd() *cobra.Command {
	var req matching.ScoreRequest
	cmd := &cobra.Command{
		Use:   "score [entity-a] [entity-b]",
		Short: "Score two organization names",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := newResolver()
			if err != nil {
				return err
			}
			req.EntityA, req.EntityB = args[0], args[1]
			return printJSON(cmd, resolver.Score(cmd.Context(), req))
		},
	}
	cmd.Flags().StringVar(&req.CountryA, "country-a", "", "country of the first entity")
	cmd.Flags().StringVar(&req.CountryB, "country-b", "", "country of the second entity")
	return cmd
}

func createEquivalentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "equivalent [entity-a] [entity-b]",
		Short: "Check structural equivalence of two organization names",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := newResolver()
			if err != nil {
				return err
			}
			return printJSON(cmd, resolver.AreEquivalent(args[0], args[1]))
		},
	}
}

func createNormalizeCountryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize-country [input]",
		Short: "Resolve a country name, code or variant to its canonical name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := newResolver()
			if err != nil {
				return err
			}
			match, ok := resolver.NormalizeCountry(args[0])
			if !ok {
				return printJSON(cmd, map[string]any{"found": false})
			}
			return printJSON(cmd, map[string]any{"found": true, "match": match})
		},
	}
}

func createNormalizeEntityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize-entity [text]",
		Short: "Show the normalized form of an organization name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := newResolver()
			if err != nil {
				return err
			}
			return printJSON(cmd, resolver.NormalizeEntity(args[0]))
		},
	}
}

func createMatchFileCmd() *cobra.Command {
	var (
		query      matching.Query
		schemaType string
	)
	cmd := &cobra.Command{
		Use:   "match-file [csv]",
		Short: "Rank the organizations in a dataset CSV against a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if query.Entity == "" {
				return errors.New("--entity is required")
			}
			resolver, err := newResolver()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open dataset: %w", err)
			}
			defer f.Close()

			entities, report, err := dataset.Parse(f, dataset.ParseOptions{SchemaType: schemaType})
			if err != nil {
				return err
			}
			logger.Info().
				Int("rows", report.Rows).
				Int("parsed", report.Parsed).
				Int("skipped", report.Skipped).
				Msg("dataset parsed")

			return printJSON(cmd, resolver.Rank(cmd.Context(), query, dataset.Candidates(entities)))
		},
	}
	cmd.Flags().StringVar(&query.Entity, "entity", "", "organization name to look for")
	cmd.Flags().StringVar(&query.Country, "country", "", "country of the query organization")
	cmd.Flags().StringVar(&schemaType, "schema-type", "", "schema type for raw-format rows")
	return cmd
}

func createImportCmd() *cobra.Command {
	var schemaType string
	cmd := &cobra.Command{
		Use:   "import [csv]",
		Short: "Import a dataset CSV into the reference entity store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required for import")
			}

			if err := db.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}

			ctx := cmd.Context()
			database, err := db.NewDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open dataset: %w", err)
			}
			defer f.Close()

			importer := dataset.NewImporter(repository.NewReferenceEntityRepository(database.Pool))
			report, err := importer.Import(ctx, f, dataset.ParseOptions{SchemaType: schemaType})
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVar(&schemaType, "schema-type", "", "schema type for raw-format rows")
	return cmd
}

func createConvertCmd() *cobra.Command {
	var schemaType string
	cmd := &cobra.Command{
		Use:   "convert [input-csv] [output-csv]",
		Short: "Rewrite a dataset CSV into the upload layout",
		Long:  `Rewrite a published list CSV into the upload layout, nulling unreadable dates, and print the conversion report`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open dataset: %w", err)
			}
			defer in.Close()

			out, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}

			report, err := dataset.Convert(in, out, dataset.ParseOptions{SchemaType: schemaType})
			if closeErr := out.Close(); err == nil && closeErr != nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
			if err != nil {
				return err
			}
			logger.Info().
				Int("parsed", report.Parsed).
				Int("fixed_dates", report.FixedDates).
				Str("output", args[1]).
				Msg("dataset converted")
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVar(&schemaType, "schema-type", "", "schema type for raw-format rows (default: Organization)")
	return cmd
}
