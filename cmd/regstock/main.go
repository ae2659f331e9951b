package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/regstock/internal/abs"
	"github.com/dgallion1/regstock/internal/aggregate"
	"github.com/dgallion1/regstock/internal/api"
	"github.com/dgallion1/regstock/internal/config"
	"github.com/dgallion1/regstock/internal/corpus"
	"github.com/dgallion1/regstock/internal/count"
	"github.com/dgallion1/regstock/internal/industry"
	"github.com/dgallion1/regstock/internal/legislation"
	"github.com/dgallion1/regstock/internal/pipeline"
	"github.com/dgallion1/regstock/internal/report"
)

var version = "0.1.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "regstock",
		Short: "Australian regulatory stock analyzer",
		Long: `Regstock counts regulatory requirements across the federal
legislation register, maps them to ANZSIC industry divisions, and
serves stock, industry and index tables for the dashboard.`,
		Version: version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildRunner wires the register client, corpus store and mapper into
// a pipeline runner. The caller owns closing the returned store.
func buildRunner(cfg config.Config, log *slog.Logger) (*pipeline.Runner, *corpus.Store, error) {
	mapper, err := industry.NewMapper(cfg.Mapping)
	if err != nil {
		return nil, nil, err
	}
	store, err := corpus.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	client := legislation.NewClient(cfg.RegisterAPIURL, cfg.RegisterSiteURL,
		cfg.RequestTimeout, cfg.FetchCacheTTL, log.With("component", "register"))
	runner := pipeline.NewRunner(cfg, client, store, mapper, log.With("component", "pipeline"))
	return runner, store, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			runner, store, err := buildRunner(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			runner.Start(ctx)
			if err := pipeline.StartScheduler(ctx, cfg.RefreshSchedule, runner, log.With("component", "scheduler")); err != nil {
				return fmt.Errorf("invalid refresh_schedule: %w", err)
			}

			mapper, err := industry.NewMapper(cfg.Mapping)
			if err != nil {
				return err
			}
			srv := api.NewServer(runner, store, mapper, log.With("component", "api"), cfg)

			httpServer := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      srv,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh
				log.Info("shutting down...")

				runner.Stop()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			log.Info("starting regstock", "port", cfg.Port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Refresh the corpus from the legislation register",
		Long: `Fetch the principal titles of all three collections, extract and
count requirement words, and replace the stored corpus snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			runner, store, err := buildRunner(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()
			defer runner.Stop()

			run, err := runner.Trigger()
			if err != nil {
				return err
			}

			for {
				snap := run.Snapshot()
				switch snap.Status {
				case pipeline.StatusCompleted, pipeline.StatusPartial:
					fmt.Printf("run %s: %s (%d titles, %d processed, %d errors)\n",
						snap.ID, snap.Status, snap.Progress.TitlesFetched,
						snap.Progress.DocumentsProcessed, len(snap.Progress.Errors))
					return nil
				case pipeline.StatusFailed:
					return fmt.Errorf("run %s failed: %v", snap.ID, snap.Progress.Errors)
				}
				time.Sleep(500 * time.Millisecond)
			}
		},
	}
}

// analyzeOptions resolves config defaults with CLI overrides into
// aggregation options.
func analyzeOptions(cmd *cobra.Command, cfg config.Config) (aggregate.Options, error) {
	opts := aggregate.Options{
		Stock: aggregate.StockOptions{RepealAdjusted: cfg.RepealAdjusted},
		Industry: aggregate.IndustryOptions{
			Methodology: cfg.Methodology,
			Mode:        cfg.CrossCuttingMode,
			Shares:      cfg.Shares(),
			TopN:        cfg.TopN,
		},
		BaseYear: cfg.BaseYear,
	}
	if cmd.Flags().Changed("methodology") {
		v, _ := cmd.Flags().GetString("methodology")
		opts.Industry.Methodology = count.Methodology(v)
	}
	if cmd.Flags().Changed("cross-cutting") {
		v, _ := cmd.Flags().GetString("cross-cutting")
		opts.Industry.Mode = aggregate.CrossCuttingMode(v)
	}
	if cmd.Flags().Changed("base-year") {
		v, _ := cmd.Flags().GetInt("base-year")
		opts.BaseYear = v
	}
	if cmd.Flags().Changed("repeal-adjusted") {
		v, _ := cmd.Flags().GetBool("repeal-adjusted")
		opts.Stock.RepealAdjusted = v
	}

	if cfg.IndicatorsPath != "" {
		indicators, err := abs.LoadFile(cfg.IndicatorsPath)
		if err != nil {
			return opts, fmt.Errorf("load indicators: %w", err)
		}
		opts.External = abs.HeadlineSeries(indicators)
		if opts.Industry.Mode == aggregate.CrossCuttingApportion && opts.Industry.Shares == nil {
			shares, err := abs.EmploymentShares(indicators, time.Now().Year())
			if err != nil {
				return opts, fmt.Errorf("derive employment shares: %w", err)
			}
			opts.Industry.Shares = shares
		}
	}
	return opts, nil
}

func addAnalyzeFlags(cmd *cobra.Command) {
	cmd.Flags().String("methodology", "", "counting methodology: bc or regdata")
	cmd.Flags().String("cross-cutting", "", "cross-cutting handling: include, exclude or apportion")
	cmd.Flags().Int("base-year", 0, "index base year")
	cmd.Flags().Bool("repeal-adjusted", false, "subtract repealed legislation from the stock")
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Aggregate the stored corpus and print the tables as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mapper, err := industry.NewMapper(cfg.Mapping)
			if err != nil {
				return err
			}
			store, err := corpus.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			docs, err := store.All(cmd.Context())
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("corpus is empty, run 'regstock fetch' first")
			}

			opts, err := analyzeOptions(cmd, cfg)
			if err != nil {
				return err
			}
			tables, err := aggregate.Run(docs, mapper, opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tables)
		},
	}
	addAnalyzeFlags(cmd)
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the summary report as Markdown and HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mapper, err := industry.NewMapper(cfg.Mapping)
			if err != nil {
				return err
			}
			store, err := corpus.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			docs, err := store.All(cmd.Context())
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("corpus is empty, run 'regstock fetch' first")
			}

			opts, err := analyzeOptions(cmd, cfg)
			if err != nil {
				return err
			}
			tables, err := aggregate.Run(docs, mapper, opts)
			if err != nil {
				return err
			}

			md := report.Build(tables, docs, report.Meta{
				DataSource: cfg.RegisterSiteURL,
				Scope:      "Principal Commonwealth legislation in force",
			})
			html, err := report.RenderHTML(md)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
				return err
			}
			mdPath := filepath.Join(cfg.ReportDir, "regulatory_burden_report.md")
			htmlPath := filepath.Join(cfg.ReportDir, "regulatory_burden_report.html")
			if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s and %s\n", mdPath, htmlPath)
			return nil
		},
	}
	addAnalyzeFlags(cmd)
	return cmd
}
