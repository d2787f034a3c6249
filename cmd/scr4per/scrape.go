package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/config"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/orchestrator"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/platform"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/platform/instagram"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/pool"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/session"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/storage"
)

var (
	// Scrape command flags
	scrapeMaxItems   int
	scrapeConcurrent int
	scrapeTenant     string
	scrapeStrict     bool
	scrapePersist    bool
	scrapeUsePool    bool
	scrapeOutput     string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <platform:username> [platform:username...]",
	Short: "Scrape the social graph around one or more root profiles",
	Long: `Run one scrape batch. Each argument names a root as platform:username;
the roots are processed under bounded concurrency and merged into one
payload, which is printed as JSON.

A stored session is required per platform (see 'scr4per session import'),
or pass --use-pool to check accounts out of the shared pool instead.`,
	Example: `  # Scrape one Instagram profile
  scr4per scrape instagram:johndoe

  # Several roots, capped item count, persisted to Postgres
  scr4per scrape instagram:johndoe instagram:janedoe --max-items 500 --persist

  # Abort the whole batch when any root lacks a session
  scr4per scrape instagram:johndoe --strict-sessions

  # Borrow accounts from the shared pool
  scr4per scrape instagram:johndoe --use-pool`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVar(&scrapeMaxItems, "max-items", 0, "max items per relation list (0 = configured default)")
	scrapeCmd.Flags().IntVar(&scrapeConcurrent, "concurrency", 0, "max roots processed concurrently (0 = configured default)")
	scrapeCmd.Flags().StringVar(&scrapeTenant, "tenant", "", "tenant whose sessions to use")
	scrapeCmd.Flags().BoolVar(&scrapeStrict, "strict-sessions", false, "abort the batch when any root lacks a session")
	scrapeCmd.Flags().BoolVar(&scrapePersist, "persist", false, "persist profiles and relationships to Postgres")
	scrapeCmd.Flags().BoolVar(&scrapeUsePool, "use-pool", false, "check accounts out of the shared pool instead of local sessions")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "write the payload to a file instead of stdout")
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if scrapeConcurrent > 0 {
		flags["concurrency"] = scrapeConcurrent
	}
	if scrapeMaxItems > 0 {
		flags["max-items"] = scrapeMaxItems
	}
	if cmd.Flags().Changed("strict-sessions") {
		flags["strict-sessions"] = scrapeStrict
	}
	if cmd.Flags().Changed("persist") {
		flags["persist"] = scrapePersist
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	requests, err := parseRoots(args, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	opts := orchestrator.Options{
		Config:   cfg,
		Registry: newRegistry(),
	}

	if scrapeUsePool {
		manager, _, err := connectPool(ctx, cfg)
		if err != nil {
			return err
		}
		opts.Pool = manager
	} else {
		sessions, err := session.NewManager(session.Options{
			Directory:  cfg.Session.Directory,
			UseKeyring: cfg.Session.UseKeyring,
		})
		if err != nil {
			return err
		}
		opts.Sessions = sessions
	}

	if cfg.Scraper.Persist {
		sink, err := connectSink(ctx, cfg)
		if err != nil {
			return err
		}
		opts.Sink = sink
	}

	orch, err := orchestrator.New(opts)
	if err != nil {
		return err
	}

	payload, err := orch.Run(ctx, requests)
	if err != nil {
		return err
	}

	return writePayload(payload)
}

// parseRoots turns platform:username arguments into root requests.
func parseRoots(args []string, cfg *config.Config) ([]models.RootRequest, error) {
	requests := make([]models.RootRequest, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(strings.TrimSpace(arg), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid root %q, expected platform:username", arg)
		}
		requests = append(requests, models.RootRequest{
			Platform:       parts[0],
			Username:       parts[1],
			MaxItems:       cfg.Scraper.DefaultMaxItems,
			Tenant:         scrapeTenant,
			StrictSessions: cfg.Scraper.StrictSessions,
			Persist:        cfg.Scraper.Persist,
		})
	}
	return requests, nil
}

// newRegistry builds the adapter registry with the built-in platforms.
func newRegistry() *platform.Registry {
	return platform.NewRegistry(map[string]platform.Factory{
		"instagram": instagram.New,
	})
}

// connectPool opens the Postgres-backed account pool.
func connectPool(ctx context.Context, cfg *config.Config) (*pool.Manager, *pool.PostgresStore, error) {
	db, err := pool.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	store := pool.NewPostgresStore(db, nil)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	return pool.NewManager(store, cfg.Pool, nil), store, nil
}

// connectSink opens the Postgres persistence sink.
func connectSink(ctx context.Context, cfg *config.Config) (storage.Sink, error) {
	db, err := pool.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	sink := storage.NewPostgresSink(db, nil)
	if err := sink.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

// writePayload renders the payload as JSON to the chosen destination.
func writePayload(payload *models.Payload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render payload: %w", err)
	}
	data = append(data, '\n')

	if scrapeOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(scrapeOutput, data, 0644)
}
