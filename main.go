/*
Package main is the scrape monitor command.

It submits URLs to a scraping backend, polls the tracked task until it
completes or fails, and fetches its result. The serve command exposes the
same lifecycle over HTTP together with batch submission from feeds and an
archive of past outcomes.

Run the server:

	$ go run . serve

Track a single URL from the terminal:

	$ go run . submit --watch https://example.com

Endpoints:
  - POST /scrape: Submit a URL and track its task.
  - GET|PUT|DELETE /tracked: Inspect or change the tracked task.
  - GET /tasks, GET /tasks/{id}/result: List tasks and fetch results.
  - POST /batches, GET /batches/{id}: Submit many URLs at once.
  - GET /archive, GET /archive/{id}: Outcomes of tracked tasks.
*/
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/config"
	_ "github.com/Nexora-Open-Source/scrape-monitor/docs"
	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/Nexora-Open-Source/scrape-monitor/middleware"
	"github.com/Nexora-Open-Source/scrape-monitor/source"
	"github.com/Nexora-Open-Source/scrape-monitor/utils"
	"github.com/spf13/cobra"
)

// @title Scrape Monitor API
// @version 1.0
// @description Submits URLs to a scraping backend and tracks the resulting tasks.
// @BasePath /

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	apiURL       string
	logLevel     string
	pollInterval time.Duration
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "scrape-monitor",
		Short:         "Submit URLs for scraping and track the resulting tasks",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "backend API base url (overrides API_BASE_URL)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().DurationVar(&flags.pollInterval, "poll-interval", 0, "status poll interval (overrides POLL_INTERVAL)")

	root.AddCommand(
		newServeCmd(flags),
		newSubmitCmd(flags),
		newWatchCmd(flags),
		newListCmd(flags),
		newBatchCmd(flags),
	)
	return root
}

// loadApp builds the configuration from the environment, applies flag
// overrides and initializes every service.
func loadApp(flags *globalFlags) (*config.AppConfig, error) {
	cfg := config.NewConfig()
	if flags.apiURL != "" {
		cfg.APIBaseURL = flags.apiURL
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.pollInterval != 0 {
		cfg.PollInterval = flags.pollInterval
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	middleware.InitLogger(cfg.LogLevel)

	services, err := config.NewServices(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %v", err)
	}
	return &config.AppConfig{Config: cfg, Services: services}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer app.Services.Close()

			ctx, stop := signalContext()
			defer stop()

			middleware.Logger.Info("Starting scrape monitor server")
			return serve(ctx, app)
		},
	}
}

func newSubmitCmd(flags *globalFlags) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Submit a URL for scraping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer app.Services.Close()

			ctx, stop := signalContext()
			defer stop()

			if !watch {
				submitter, err := app.Services.Container.GetSubmitter()
				if err != nil {
					return err
				}
				task, err := submitter.Submit(ctx, args[0])
				if err != nil {
					return err
				}
				printTask(cmd.OutOrStdout(), task)
				return nil
			}

			coordinator, err := app.Services.Container.GetCoordinator()
			if err != nil {
				return err
			}

			return watchTask(ctx, cmd.OutOrStdout(), coordinator, func() error {
				task, err := coordinator.Submit(ctx, args[0])
				if err == nil {
					printTask(cmd.OutOrStdout(), task)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "track the task until it finishes")
	return cmd
}

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Track an existing task until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || taskID <= 0 {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer app.Services.Close()

			coordinator, err := app.Services.Container.GetCoordinator()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			return watchTask(ctx, cmd.OutOrStdout(), coordinator, func() error {
				return coordinator.SetTrackedTask(&taskID)
			})
		},
	}
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer app.Services.Close()

			lister, err := app.Services.Container.GetLister()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			tasks, err := lister.ListTasks(ctx, skip, limit)
			if err != nil {
				return err
			}
			printTaskTable(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().IntVar(&skip, "skip", 0, "number of tasks to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of tasks to return (default LIST_PAGE_SIZE)")
	return cmd
}

func newBatchCmd(flags *globalFlags) *cobra.Command {
	var feedURLs []string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "batch [url...]",
		Short: "Submit many URLs, optionally read from RSS or Atom feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer app.Services.Close()

			processor, err := app.Services.Container.GetBatchProcessor()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			results := []source.FeedResult{{Links: args}}
			if len(feedURLs) > 0 {
				reader := source.NewReader(nil, app.Config.FeedConcurrency, app.Services.Logger)
				feeds := reader.Collect(ctx, feedURLs)
				printFeedResults(cmd.ErrOrStderr(), feeds)
				results = append(results, feeds...)
			}

			links := source.UniqueLinks(results)
			if len(links) == 0 {
				return fmt.Errorf("no urls to submit")
			}

			batchID := "batch_" + utils.RandomString(12)
			for _, link := range links {
				if _, err := processor.SubmitJob(batchID, link, ""); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", link, err)
				}
			}

			summary, err := waitForBatch(ctx, processor, batchID, timeout)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), summary)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d submissions failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&feedURLs, "feed", nil, "feed url to read links from (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for all submissions")
	return cmd
}

// watchTask subscribes to coordinator, runs start and blocks until the
// tracked task reaches a terminal phase.
func watchTask(ctx context.Context, out io.Writer, coordinator *lifecycle.Coordinator, start func() error) error {
	done := make(chan lifecycle.Snapshot, 1)
	printer := newSnapshotPrinter(out)

	coordinator.Subscribe(func(snap lifecycle.Snapshot) {
		printer.Print(snap)
		if snap.Terminal() {
			select {
			case done <- snap:
			default:
			}
		}
	})

	if err := start(); err != nil {
		return err
	}

	select {
	case snap := <-done:
		printResult(out, snap)
		if snap.Err != nil {
			return snap.Err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
