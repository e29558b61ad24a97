package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/dkalashnik/survey-rewards-bot/pkg/completion"
	"github.com/dkalashnik/survey-rewards-bot/pkg/config"
	"github.com/dkalashnik/survey-rewards-bot/pkg/coordinator"
	"github.com/dkalashnik/survey-rewards-bot/pkg/database"
	"github.com/dkalashnik/survey-rewards-bot/pkg/equivalence"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// BackendOpener connects the completion backend described by cfg.
type BackendOpener func(ctx context.Context, cfg *config.AppConfig) (completion.Backend, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string
	CatalogPath string
	StoreDriver string
	StoreDSN    string
	RedisURI    string

	open BackendOpener
}

// env is what a diagnostics command operates on.
type env struct {
	store       *completion.Store
	registry    *equivalence.Registry
	coordinator *coordinator.Coordinator
	out         io.Writer
	format      string
	close       func() error
}

// NewRootCommand builds the surveyctl command tree. A nil opener connects
// to the backend named by --store.
func NewRootCommand(open BackendOpener) *cobra.Command {
	if open == nil {
		open = database.OpenCompletionBackend
	}
	defaults := config.Load()
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "surveyctl",
		Short: "Inspect and reset survey completion state",
		Long: `surveyctl reads and repairs the completion records the survey bot keeps
per respondent. It talks to the same store and catalog the bot is configured with.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log store operations to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.CatalogPath, "catalog", defaults.CatalogPath, "catalog YAML with equivalence groups")
	cmd.PersistentFlags().StringVar(&opts.StoreDriver, "store", defaults.StoreDriver, "completion store driver (memory|sqlite|postgres|redis)")
	cmd.PersistentFlags().StringVar(&opts.StoreDSN, "dsn", defaults.StoreDSN, "gorm DSN for sqlite/postgres")
	cmd.PersistentFlags().StringVar(&opts.RedisURI, "redis-uri", defaults.RedisURI, "redis URI")

	cmd.AddCommand(newCompletionsCommand(opts))
	cmd.AddCommand(newUnmarkCommand(opts))
	cmd.AddCommand(newUnmarkGroupCommand(opts))
	cmd.AddCommand(newGroupsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// setup loads the catalog and opens the store for one command run.
func (o *RootOptions) setup(cmd *cobra.Command) (*env, error) {
	catalog, err := loadCatalog(o.CatalogPath)
	if err != nil {
		return nil, err
	}

	logger := log.New(io.Discard, "", 0)
	if o.Verbose {
		logger = log.New(cmd.ErrOrStderr(), "surveyctl ", log.LstdFlags)
	}

	cfg := &config.AppConfig{StoreDriver: o.StoreDriver, StoreDSN: o.StoreDSN, RedisURI: o.RedisURI}
	backend, closeFn, err := o.open(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", o.StoreDriver, err)
	}

	store := completion.NewStore(backend, logger)
	registry, err := equivalence.NewRegistry(catalog.EquivalenceGroups(), store)
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	return &env{
		store:       store,
		registry:    registry,
		coordinator: coordinator.New(store, registry, nil, nil, coordinator.Options{}, logger),
		out:         cmd.OutOrStdout(),
		format:      o.Format,
		close:       closeFn,
	}, nil
}

// loadCatalog reads the catalog file; an empty path means no groups.
func loadCatalog(path string) (*config.CatalogConfig, error) {
	if path == "" {
		return &config.CatalogConfig{}, nil
	}
	if err := config.LoadConfig(path); err != nil {
		return nil, err
	}
	return config.GetConfig(), nil
}

// print writes v as JSON, or text via the fallback when --format=text.
func (e *env) print(v any, text func(w io.Writer)) error {
	if e.format == "json" {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(e.out)
	return nil
}
