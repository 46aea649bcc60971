// monitord - activity monitoring engine
//
//	monitord run       Run the tracking daemon
//	monitord status    Show the active session, if any
//	monitord version   Print the build version
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monitord/internal/config"
	"monitord/internal/event"
	"monitord/internal/health"
	"monitord/internal/logging"
	"monitord/internal/notify"
	"monitord/internal/sched"
	"monitord/internal/session"
	"monitord/internal/store"
	"monitord/internal/telemetry"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`monitord - activity monitoring engine

USAGE:
    monitord <command> [options]

COMMANDS:
    run         Run the tracking daemon
    status      Show the active session, if any
    version     Print the build version
    help        Show this help message

Run 'monitord run -h' for daemon options.

PRIVACY NOTE:
    monitord records event counts, timing, and cursor distance.
    It does NOT capture which keys are pressed or any text content.`)
}

func defaultConfigPath() string {
	return config.DefaultDataDir() + "/config.toml"
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path (toml, json, or yaml)")
	simulate := fs.Bool("simulate", false, "use a simulated input source instead of OS hooks")
	telemetryAddr := fs.String("telemetry-addr", "", "override telemetry listen address")
	logLevel := fs.String("log-level", "", "override log level (debug, info, warn, error)")
	mode := fs.String("mode", string(session.ModeClientHours), "tracking mode: client_hours or command_hours")
	task := fs.String("task", "", "task description for the session started at launch")
	projectID := fs.String("project", "", "project id for the session started at launch")
	fs.Parse(args)

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *telemetryAddr != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Addr = *telemetryAddr
	}

	logger, err := logging.New(&logging.Config{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		Format:     logging.ParseFormat(cfg.Logging.Format),
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Component:  "monitord",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	log := logger.Component("main")

	st, err := store.Open(cfg.Storage)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.SetIdentity(ctx, session.User{
		ID:    cfg.User.ID,
		Name:  cfg.User.Name,
		Email: cfg.User.Email,
	}); err != nil {
		log.Error("seed identity", "error", err)
		os.Exit(1)
	}

	// A previous run may have crashed mid-session; close the stale row
	// so reports do not show a session spanning the downtime.
	if stale, err := st.GetActiveSession(ctx); err != nil {
		log.Warn("check stale session", "error", err)
	} else if stale != nil {
		log.Info("closing stale session", "session_id", stale.ID, "started_at", stale.StartTime)
		if err := st.EndSession(ctx, stale.ID, time.Now().UTC()); err != nil {
			log.Warn("close stale session", "error", err)
		}
	}

	var source event.Source
	var sim *event.SimSource
	if *simulate {
		sim = event.NewSimSource()
		source = sim
	} else {
		source = event.NewPlatformSource()
	}

	sch := sched.New(sched.NewRealClock())
	go sch.Run(ctx)

	bus := notify.NewBus(64)
	ctrl := session.NewController(cfg, sch, source, st, bus)

	loader.OnChange(func(updated *config.Config) {
		log.Info("configuration reloaded")
		ctrl.UpdateConfig(updated)
	})
	if err := loader.Watch(); err != nil {
		log.Warn("config watch unavailable", "error", err)
	}
	defer loader.Close()
	go func() {
		for err := range loader.Errors() {
			log.Warn("config reload failed", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("store", true, func(ctx context.Context) health.CheckResult {
		if err := st.DB().PingContext(ctx); err != nil {
			return health.Unhealthy(err.Error())
		}
		return health.Healthy()
	})
	checker.Register("session", false, func(ctx context.Context) health.CheckResult {
		if ctrl.State() == session.StateStopped {
			return health.Degraded("no active session")
		}
		return health.Healthy()
	})

	if cfg.Telemetry.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Default().Handler())
		mux.Handle("/healthz", checker.Handler())
		mux.Handle("/readyz", checker.ReadyHandler())
		srv := &http.Server{Addr: cfg.Telemetry.Addr, Handler: mux}
		go func() {
			log.Info("telemetry listening", "addr", cfg.Telemetry.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("telemetry server", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	go logNotifications(bus, log)

	sess, err := ctrl.Start(ctx, session.Mode(*mode), *projectID, sessionTask(*task, *simulate))
	if err != nil {
		log.Error("start session", "error", err)
		os.Exit(1)
	}
	log.Info("session started", "session_id", sess.ID, "mode", sess.Mode, "task", sess.Task)
	checker.SetReady(true)

	if sim != nil {
		go runSimulation(ctx, sim)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	if err := ctrl.Stop(ctx); err != nil && err != session.ErrNotTracking {
		log.Warn("stop session", "error", err)
	}
	cancel()
}

func sessionTask(task string, simulate bool) string {
	if task != "" {
		return task
	}
	if simulate {
		return "simulated activity"
	}
	return "untitled work"
}

// logNotifications drains the engine bus. A richer frontend would fan
// these out to a tray icon or upload queue.
func logNotifications(bus *notify.Bus, log *slog.Logger) {
	for n := range bus.C() {
		switch v := n.(type) {
		case notify.WindowComplete:
			log.Info("window complete",
				"session_id", v.SessionID,
				"window_start", v.WindowStart,
				"window_end", v.WindowEnd,
				"periods", len(v.Periods))
		case notify.InactivityDetected:
			log.Info("inactivity detected", "session_id", v.SessionID, "message", v.Message)
		case notify.MidnightStop:
			log.Info("midnight rollover", "session_id", v.SessionID, "new_date", v.NewDate)
		default:
			log.Info("notification", "topic", n.Topic())
		}
	}
}

// runSimulation produces plausible human-ish input against a SimSource
// so the full pipeline can be exercised without OS hooks.
func runSimulation(ctx context.Context, sim *event.SimSource) {
	codes := []uint16{65, 83, 68, 70, 71, 72, 74, 75, 76, 32, 69, 82, 84, 8}
	i := 0
	ticker := time.NewTicker(220 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sim.KeyPress(codes[i%len(codes)], now, 60*time.Millisecond)
			if i%17 == 0 {
				sim.Click(event.ButtonLeft, now)
			}
			if i%9 == 0 {
				sim.Move(float64(100+i%800), float64(200+i%400), now)
			}
			if i%23 == 0 {
				sim.Scroll(now)
			}
			i++
		}
	}
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	fs.Parse(args)

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	sess, err := st.GetActiveSession(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading sessions: %v\n", err)
		os.Exit(1)
	}
	if sess == nil {
		fmt.Println("No active session.")
		return
	}

	fmt.Printf("Active session: %s\n", sess.ID)
	fmt.Printf("  User:    %s\n", sess.UserID)
	fmt.Printf("  Mode:    %s\n", sess.Mode)
	fmt.Printf("  Task:    %s\n", sess.Task)
	fmt.Printf("  Started: %s\n", sess.StartTime.Format(time.RFC3339))

	periods, err := st.ListPeriods(context.Background(), sess.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading periods: %v\n", err)
		os.Exit(1)
	}
	if len(periods) > 0 {
		total := 0
		for _, p := range periods {
			total += p.ActivityScore
		}
		fmt.Printf("  Periods: %d saved, average score %d\n", len(periods), total/len(periods))
	}
}
