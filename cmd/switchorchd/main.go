package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // profiling endpoints, matching the teacher's daemon
	"os"

	"github.com/cuemby/switchorch/pkg/bulkrouteorch"
	"github.com/cuemby/switchorch/pkg/config"
	"github.com/cuemby/switchorch/pkg/consumer"
	"github.com/cuemby/switchorch/pkg/db"
	"github.com/cuemby/switchorch/pkg/directory"
	"github.com/cuemby/switchorch/pkg/hal"
	halfake "github.com/cuemby/switchorch/pkg/hal/fake"
	"github.com/cuemby/switchorch/pkg/kernellink"
	"github.com/cuemby/switchorch/pkg/log"
	"github.com/cuemby/switchorch/pkg/metrics"
	"github.com/cuemby/switchorch/pkg/orch"
	"github.com/cuemby/switchorch/pkg/recorder"
	"github.com/cuemby/switchorch/pkg/refcrm"
	"github.com/cuemby/switchorch/pkg/response"
	"github.com/cuemby/switchorch/pkg/signals"
	"github.com/cuemby/switchorch/pkg/vrforch"
	"github.com/cuemby/switchorch/pkg/warmrestart"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version information, set via ldflags during build.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "switchorchd",
	Short:   "switchorchd converges desired switch state into ASIC calls",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("switchorchd version %s\nCommit: %s\n", Version, Commit))

	flags := rootCmd.Flags()
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "output logs in JSON format")
	flags.String("bolt-path", "", "path to a boltdb file (standalone mode, no Redis server required)")
	flags.String("redis-addr", "127.0.0.1:6379", "Redis server address, used when --bolt-path is not set")
	flags.String("redis-password", "", "Redis server password")
	flags.String("metrics-addr", "127.0.0.1:9090", "metrics/health HTTP listen address")
	flags.Bool("enable-pprof", false, "expose pprof debug endpoints on the metrics listener")
	flags.String("recorder-path", "", "override CONFIG_DB's recorder_path knob")
	flags.String("dump-path", "", "override CONFIG_DB's dump_path knob")
}

func run(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	logLevel, _ := flags.GetString("log-level")
	logJSON, _ := flags.GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

	database, err := openDatabase(flags)
	if err != nil {
		return fmt.Errorf("switchorchd: open database: %w", err)
	}
	defer database.Close()

	cfgNS := database.Namespace(db.ConfigDB)
	applStateNS := database.Namespace(db.ApplStateDB)
	stateNS := database.Namespace(db.StateDB)

	cfg := config.NewLoader(cfgNS)

	var rec *recorder.Recorder
	recorderPath := cfg.RecorderPath()
	if override, _ := flags.GetString("recorder-path"); override != "" {
		recorderPath = override
	}
	if cfg.RecorderEnabled() || recorderPath != "" {
		rec, err = recorder.New(recorderPath, "switchorchd")
		if err != nil {
			return fmt.Errorf("switchorchd: open recorder: %w", err)
		}
		defer rec.Close()
	}

	halClient := hal.NewBreakerClient("hal", halfake.New())

	dumpPath := cfg.DumpPath()
	if override, _ := flags.GetString("dump-path"); override != "" {
		dumpPath = override
	}

	refs := refcrm.New()
	publisher := response.NewPublisher(applStateNS, rec)
	warmRestart := warmrestart.NewRegistry(stateNS)
	link := kernellink.NewExecLink()

	dir := directory.New()
	dir.Set(directory.KeyDatabase, database)
	dir.Set(directory.KeyHAL, halClient)
	dir.Set(directory.KeyRefCRM, refs)
	dir.Set(directory.KeyWarmRestart, warmRestart)
	dir.Set(directory.KeyPublisher, publisher)
	dir.Set(directory.KeyRecorder, rec)

	engine := orch.NewEngine(halClient)

	vrfConsumer := consumer.New(vrforch.Table, cfgNS)
	vrfOrch := vrforch.New(vrfConsumer, halClient, link, refs, publisher)
	if err := engine.Register(vrfOrch, vrfConsumer); err != nil {
		return fmt.Errorf("switchorchd: register vrforch: %w", err)
	}
	dir.Set(vrfOrch.Name(), vrfOrch)

	routeConsumer := consumer.New(bulkrouteorch.Table, cfgNS)
	routeOrch := bulkrouteorch.New(routeConsumer, halClient, refs, publisher, cfg.MaxBulkSize())
	if err := engine.Register(routeOrch, routeConsumer); err != nil {
		return fmt.Errorf("switchorchd: register bulkrouteorch: %w", err)
	}
	dir.Set(routeOrch.Name(), routeOrch)

	modules := []string{vrfOrch.Name(), routeOrch.Name()}
	for _, module := range modules {
		if err := warmRestart.Load(module, cfg.WarmRestartEnabled(module)); err != nil {
			return fmt.Errorf("switchorchd: load warm-restart state for %s: %w", module, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Bake(ctx); err != nil {
		return fmt.Errorf("switchorchd: bake: %w", err)
	}
	for _, module := range modules {
		if cfg.WarmRestartEnabled(module) {
			if err := warmRestart.SetState(module, warmrestart.Restored); err != nil {
				return fmt.Errorf("switchorchd: mark %s restored: %w", module, err)
			}
		}
	}
	if err := engine.WarmRestoreSyncUp(ctx); err != nil {
		return fmt.Errorf("switchorchd: warm restore sync up: %w", err)
	}
	for _, module := range modules {
		if warmRestart.State(module) == warmrestart.Restored && engine.ReplayComplete(module) {
			if err := warmRestart.SetState(module, warmrestart.Replayed); err != nil {
				return fmt.Errorf("switchorchd: mark %s replayed: %w", module, err)
			}
		}
	}

	// The Replayed -> Reconciled transition is driven from the engine's
	// first periodic tick rather than fired here: reconciliation means
	// "the running loop observed no further replay activity," which is
	// only true once the loop is actually running.
	engine.AfterFirstTick(func() {
		for _, module := range modules {
			if !warmRestart.ReconciliationRequired(module) {
				continue
			}
			if err := warmRestart.SetState(module, warmrestart.Reconciled); err != nil {
				log.WithComponent("switchorchd").Error().Err(err).Str("module", module).
					Msg("failed to mark module reconciled")
			}
		}
	})

	metrics.SetVersion(Version)
	metrics.RegisterComponent("engine", true, "running")
	startMetricsServer(flags)

	log.Info("switchorchd converging")
	go engine.Run(ctx)

	sigHandler := signals.New(rec, halClient, dumpPath)
	sigHandler.Wait(ctx)

	log.Info("switchorchd shutting down")
	cancel()
	engine.Stop()
	return nil
}

func openDatabase(flags *pflag.FlagSet) (db.Database, error) {
	boltPath, _ := flags.GetString("bolt-path")
	if boltPath != "" {
		return db.NewBoltDatabase(boltPath)
	}
	addr, _ := flags.GetString("redis-addr")
	password, _ := flags.GetString("redis-password")
	return db.NewRedisDatabase(addr, password), nil
}

func startMetricsServer(flags *pflag.FlagSet) {
	addr, _ := flags.GetString("metrics-addr")
	pprofEnabled, _ := flags.GetBool("enable-pprof")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if pprofEnabled {
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server stopped", err)
		}
	}()
	log.Info(fmt.Sprintf("metrics endpoint: http://%s/metrics", addr))
}
