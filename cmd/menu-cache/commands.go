package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/campus-menu-client/pkg/client"
	"github.com/Sternrassler/campus-menu-client/pkg/prefetch"
)

func newFetchCmd(root *rootOptions) *cobra.Command {
	var (
		method  string
		params  []string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <path>",
		Short: "Fetch an endpoint through the cache and print the JSON result",
		Long: `Fetch runs one request through the full pipeline: cache lookup,
interceptors, offline fallback and recovery with bounded retries.

Examples:
  menu-cache fetch /rest/v1/campuses
  menu-cache fetch /rest/v1/meals --param campus_id=eq.main --param date=eq.2026-03-02`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := parseParams(params)
			if err != nil {
				return err
			}

			return root.run(cmd, func(ctx context.Context, a *app) error {
				a.checkConnectivity(ctx)

				ep := client.Endpoint{
					BaseURL:    a.cfg.API.BaseURL,
					Path:       args[0],
					Method:     method,
					Parameters: parameters,
				}
				out, err := client.ExecuteWithRecovery[json.RawMessage](ctx, a.client, a.recovery, ep, client.WithCache(!noCache))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "request parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the cache")
	return cmd
}

func newWeekCmd(root *rootOptions) *cobra.Command {
	var (
		userID   string
		campusID string
		start    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show the weekly menu of a campus",
		Long: `Week prints the seven days starting at --start (default: this week's
Monday). Days already cached are served without a request, so a week that
was opened once stays readable offline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			weekStart, err := parseWeekStart(start, time.Now())
			if err != nil {
				return err
			}

			return root.run(cmd, func(ctx context.Context, a *app) error {
				a.checkConnectivity(ctx)

				week, err := a.menu.Week(ctx, userID, campusID, weekStart)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), week)
				}
				return printWeek(cmd.OutOrStdout(), week)
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&campusID, "campus", "", "campus id")
	cmd.Flags().StringVar(&start, "start", "", "first day as yyyy-mm-dd")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("campus")
	return cmd
}

func newPrefetchCmd(root *rootOptions) *cobra.Command {
	var cfg prefetch.Config

	cmd := &cobra.Command{
		Use:   "prefetch <path>...",
		Short: "Warm the cache for a set of endpoints",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(cmd, func(ctx context.Context, a *app) error {
				a.checkConnectivity(ctx)

				endpoints := make([]client.Endpoint, len(args))
				for i, path := range args {
					endpoints[i] = client.Endpoint{BaseURL: a.cfg.API.BaseURL, Path: path}
				}

				p := prefetch.New(prefetch.ClientFetcher{Client: a.client}, cfg, a.logger)
				outcomes, err := p.Warm(ctx, endpoints)
				if printErr := printOutcomes(cmd.OutOrStdout(), outcomes); printErr != nil {
					return printErr
				}
				if err != nil {
					return err
				}
				if failed := len(outcomes) - prefetch.Succeeded(outcomes); failed > 0 {
					return fmt.Errorf("%d of %d endpoints failed", failed, len(outcomes))
				}
				return nil
			})
		},
	}

	defaults := prefetch.DefaultConfig()
	cmd.Flags().IntVar(&cfg.MaxConcurrency, "concurrency", defaults.MaxConcurrency, "parallel requests")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", defaults.Timeout, "timeout per endpoint")
	return cmd
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Long: `Stats prints entry counts and sizes of both tiers. Hit and miss counters
belong to the running process, so a fresh CLI invocation reports zero; use
the serve command's /metrics endpoint for long-running counters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(ctx context.Context, a *app) error {
				stats := a.store.Stats(ctx)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				return printStats(cmd.OutOrStdout(), stats)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newSweepCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired entries and trim the persistent tier to its size budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(ctx context.Context, a *app) error {
				removed := a.store.SweepExpired(ctx)
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries.\n", removed)
				return err
			})
		},
	}
}

func newInvalidateCmd(root *rootOptions) *cobra.Command {
	var (
		key      string
		path     string
		userID   string
		campusID string
		date     string
	)

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Remove a single cache entry",
		Long: `Invalidate removes one entry from both tiers. Select it by raw --key, by
endpoint --path (GET without parameters), or by --user, --campus and --date
for a day's menu.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(ctx context.Context, a *app) error {
				switch {
				case key != "":
					a.store.Remove(ctx, key)
				case path != "":
					a.client.InvalidateEndpoint(ctx, client.Endpoint{BaseURL: a.cfg.API.BaseURL, Path: path})
				case userID != "" && campusID != "" && date != "":
					day, err := time.ParseInLocation(time.DateOnly, date, time.Local)
					if err != nil {
						return fmt.Errorf("invalid --date: %w", err)
					}
					a.menu.InvalidateDay(ctx, userID, campusID, day)
				default:
					return errors.New("specify --key, --path, or --user with --campus and --date")
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Entry invalidated.")
				return err
			})
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "raw cache key")
	cmd.Flags().StringVar(&path, "path", "", "endpoint path")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&campusID, "campus", "", "campus id")
	cmd.Flags().StringVar(&date, "date", "", "menu date as yyyy-mm-dd")
	return cmd
}

func newClearCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry from both tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(ctx context.Context, a *app) error {
				a.store.Clear(ctx)
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared successfully.")
				return err
			})
		},
	}
}

// parseParams turns name=value pairs into endpoint parameters.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, want name=value", pair)
		}
		params[name] = value
	}
	return params, nil
}

// parseWeekStart parses yyyy-mm-dd, or returns the Monday of now's week.
func parseWeekStart(value string, now time.Time) (time.Time, error) {
	if value != "" {
		start, err := time.ParseInLocation(time.DateOnly, value, now.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --start: %w", err)
		}
		return start, nil
	}
	offset := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location()), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

