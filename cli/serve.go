package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/giygas/priorauth-checker/config"
	"github.com/giygas/priorauth-checker/coverage"
	"github.com/giygas/priorauth-checker/data"
	"github.com/giygas/priorauth-checker/handlers"
	"github.com/giygas/priorauth-checker/health"
	"github.com/giygas/priorauth-checker/interfaces"
	"github.com/giygas/priorauth-checker/logging"
	"github.com/giygas/priorauth-checker/lookup"
	"github.com/giygas/priorauth-checker/mcpserver"
	"github.com/giygas/priorauth-checker/policy"
	"github.com/giygas/priorauth-checker/scheduler"
	"github.com/giygas/priorauth-checker/server"
	"github.com/giygas/priorauth-checker/telemetry"
	"github.com/giygas/priorauth-checker/validation"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the fetch_ncd_policy tool over stdio (default command)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return exitError(exitFailure, "%v", err)
	}

	opts := logging.OptionsFromConfig(cfg)
	opts.Verbose = verbose
	opts.Console = cmd.ErrOrStderr()
	// a file error is already logged, console logging still works
	_ = logging.InitLogger(opts)
	defer logging.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, cfg, nil)
}

// Serve runs the MCP session on transport (stdio when nil) together with the
// optional admin server and, when the admin server is on, the probe scheduler. It returns when the MCP client
// disconnects, ctx is cancelled or a component fails.
func Serve(ctx context.Context, cfg *config.Config, transport mcp.Transport) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, config.AppName, config.AppVersion)
	if err != nil {
		logging.Warn("Tracing disabled", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logging.Warn("Failed to flush traces", "error", err)
		}
	}()

	store, err := lookup.Open(ctx, cfg.LookupDBPath)
	if err != nil {
		logging.Error("Failed to open reference table", "path", cfg.LookupDBPath, "error", err)
		return exitError(exitFailure, "open reference table: %v", err)
	}
	defer store.Close()

	probes := data.NewDataContainer()
	probes.SetServerStartTime(time.Now())
	validator := validation.NewDataValidator()
	if err := announceStore(ctx, cfg, store, validator, probes); err != nil {
		return exitError(exitFailure, "read reference table: %v", err)
	}

	client, err := coverage.NewClient(cfg.CMSBaseURL, coverage.Options{Timeout: cfg.CMSHTTPTimeout})
	if err != nil {
		return exitError(exitFailure, "%v", err)
	}
	handler := policy.NewHandler(store, client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// only /health and /metrics read the probe results
	var sched interfaces.Scheduler
	if cfg.AdminEnabled() && cfg.ProbeInterval > 0 {
		s := scheduler.NewScheduler(probes, client, scheduler.Target{
			PolicyID:      cfg.ProbeNCDID,
			PolicyVersion: cfg.ProbeNCDVer,
		}, cfg.ProbeInterval)
		if err := s.Start(); err != nil {
			return exitError(exitFailure, "start probe scheduler: %v", err)
		}
		defer s.Stop()
		sched = s
	}

	if cfg.AdminEnabled() {
		checker := health.NewHealthChecker(store, probes, sched, cfg.ProbeInterval)
		admin := server.NewServer(cfg, handlers.NewHTTPHandler(store, validator, checker, handler))

		g.Go(admin.Start)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return admin.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		// the session ending stops everything else
		defer cancel()
		return mcpserver.Run(gctx, mcpserver.New(handler, store.Source()), transport)
	})

	if err := g.Wait(); err != nil {
		return exitError(exitFailure, "%v", err)
	}
	logging.Info("Server stopped")
	return nil
}

// announceStore logs which reference table is in use and records its
// quality report for the health endpoint
func announceStore(ctx context.Context, cfg *config.Config, store interfaces.ReferenceStore, validator interfaces.DataValidator, probes *data.DataContainer) error {
	entries, err := store.Entries(ctx)
	if err != nil {
		return err
	}

	if store.Source() == lookup.SourceDatabase {
		logging.Info("Connected to SQLite database", "path", cfg.LookupDBPath, "entries", len(entries))
	} else {
		logging.Info(fmt.Sprintf("Loaded %d built-in NCD entries", len(entries)))
	}

	report := validator.ReportReferenceQuality(entries)
	probes.SetQualityReport(report)

	if len(report.ShadowedTitles) > 0 {
		logging.Warn("Reference titles shadowed by earlier entries", "count", len(report.ShadowedTitles), "titles", report.ShadowedTitles)
	}
	if report.IncompleteEntries > 0 {
		logging.Warn("Reference entries missing a title, id or version", "count", report.IncompleteEntries)
	}
	return nil
}
