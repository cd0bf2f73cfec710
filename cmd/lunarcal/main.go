package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"lunarcal/internal/astro"
	"lunarcal/internal/calendar"
	"lunarcal/internal/config"
	"lunarcal/internal/export"
	"lunarcal/internal/feed"
	"lunarcal/internal/geo"
	appLog "lunarcal/internal/log"
	"lunarcal/internal/resolve"
	"lunarcal/internal/web"
)

const version = "0.1.0"

var (
	configPath string
	listen     string
	format     string
	console    bool
)

var rootCmd = &cobra.Command{
	Use:           "lunarcal",
	Short:         "Lunar day calendar service",
	Long:          "lunarcal subdivides moon-phase intervals into lunar days and merges them with sun and moon rise/set instants into one calendar event list.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the calendar over HTTP and refresh it on a schedule",
	RunE:  runServe,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Compute the calendar once and write it to stdout",
	RunE:  runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/lunarcal/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&console, "console", false, "Human-readable log output")
	serveCmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	onceCmd.Flags().StringVar(&format, "format", "json", "Output format: json or ics")

	rootCmd.AddCommand(serveCmd, onceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles what both commands build from the config.
type app struct {
	cfg *config.Config
	tz  *time.Location
	cal *calendar.Calendar
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	appLog.Setup(os.Stderr, console, appLog.ParseLevel(cfg.LogLevel))
	appLog.Info("lunarcal starting", "version", version)

	tz, err := cfg.TimeLocation()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}

	fetcher := feed.NewFetcher(cfg.PhaseFeedURL, cfg.NewMoonFeedURL, cfg.Timeout())
	// Sun and moon share one USNO client so a day is fetched once.
	usno := astro.NewUSNO(cfg.Astro.USNOURL, cfg.Timeout())
	provider := astro.Mux{
		Sun:  providerFor(cfg.Astro.Sun, astro.Solar{}, usno),
		Moon: providerFor(cfg.Astro.Moon, astro.Lunar{}, usno),
	}
	resolver := resolve.New(provider,
		resolve.WithTimezone(tz),
		resolve.WithConcurrency(cfg.Astro.Concurrency),
	)

	mode := calendar.ModePhase
	if cfg.Mode == string(calendar.ModeLunation) {
		mode = calendar.ModeLunation
	}
	cal := calendar.New(fetcher, resolver, geo.NewTracker(cfg.Location), calendar.Options{
		Year:     cfg.Year,
		Mode:     mode,
		Timezone: tz,
	})

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", tz.String(),
		"year", cal.Year(),
		"mode", cfg.Mode,
		"lat", cfg.Location.Lat,
		"lon", cfg.Location.Lon,
		"geolocate", cfg.Geolocate,
		"sun", cfg.Astro.Sun,
		"moon", cfg.Astro.Moon,
		"concurrency", cfg.Astro.Concurrency,
		"refresh", cfg.RefreshCron,
	)
	return &app{cfg: cfg, tz: tz, cal: cal}, nil
}

func providerFor(name string, local, usno astro.Provider) astro.Provider {
	switch name {
	case config.ProviderNone:
		return nil
	case config.ProviderUSNO:
		return usno
	default:
		return local
	}
}

// locate runs the one-shot geolocation read when enabled. It never fails.
func (a *app) locate(ctx context.Context) {
	if !a.cfg.Geolocate {
		return
	}
	if err := a.cal.Locate(ctx, geo.NewIPObserver(a.cfg.GeolocateURL, a.cfg.Timeout())); err != nil {
		appLog.Error("resolve after geolocation failed", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	if listen != "" {
		a.cfg.Listen = listen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial load; the UI stays empty until markers arrive.
	if err := a.cal.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}
	go a.locate(ctx)

	sched := cron.New(cron.WithLocation(a.tz))
	if _, err := sched.AddFunc(a.cfg.RefreshCron, func() {
		appLog.Info("scheduled refresh")
		if err := a.cal.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", a.cfg.RefreshCron, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           web.NewServer(ctx, a.cfg, a.cal).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+a.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	appLog.Info("lunarcal exiting")
	return nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// A successful geolocation already resolved the window.
	a.locate(ctx)
	if a.cal.Revision().Samples == 0 {
		if err := a.cal.ResolveSamples(ctx); err != nil {
			return err
		}
	}
	if err := a.cal.RefreshMarkers(ctx); err != nil {
		return err
	}

	events := a.cal.Events()
	switch format {
	case "ics":
		return export.Write(os.Stdout, events, export.Options{Name: "Lunar calendar"})
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
