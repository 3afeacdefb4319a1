package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"keybowd/internal/clock"
	"keybowd/internal/config"
	"keybowd/internal/gesture"
	"keybowd/internal/health"
	"keybowd/internal/keypad"
	"keybowd/internal/logging"
	"keybowd/internal/metrics"
	"keybowd/internal/store"
)

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (default: $KEYBOWD_CONFIG or standard locations)")
	toggleColor := fs.String("toggle-color", "00ff00", "Indicator colour toggled by a SINGLE gesture")
	noWatch := fs.Bool("no-watch", false, "Do not reload the config file when it changes")
	fs.Parse(os.Args[2:])

	if _, err := keypad.ParseColor(*toggleColor); err != nil {
		fatalf("%v", err)
	}

	loader := config.NewLoader(resolveConfigPath(*configPath))
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		fatalf("load config %s: %v", loader.Path(), err)
	}

	ctx, stop := signalContext()
	defer stop()

	d, err := newDaemon(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer d.Close()
	loader.SetLogger(d.logger.WithComponent("config").Logger)

	if !*noWatch {
		d.watch(loader)
	}

	if err := d.Run(ctx, *toggleColor); err != nil {
		d.log.Error("daemon stopped", "error", err)
		os.Exit(1)
	}
}

// resolveConfigPath picks the flag value, then $KEYBOWD_CONFIG, then the
// first config file found, then the default path.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("KEYBOWD_CONFIG"); env != "" {
		return env
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.ConfigPath()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// setupLogging installs the configured logger as the process default.
func setupLogging(cfg *config.Config) (*logging.Logger, error) {
	lc, err := cfg.LoggingConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	logging.SetDefault(logger)
	return logger, nil
}

// daemon wires the keypad, the gesture listener and the optional store and
// metrics endpoint together.
type daemon struct {
	cfg      *config.Config
	logger   *logging.Logger
	log      *slog.Logger
	metrics  *metrics.KeypadMetrics
	store    *store.Store
	keypad   *keypad.Keypad
	listener *gesture.Listener
	queue    *gesture.Queue
	health   *health.Checker
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	logger, err := setupLogging(cfg)
	if err != nil {
		return nil, err
	}

	d := &daemon{
		cfg:     cfg,
		logger:  logger,
		log:     logger.WithComponent("daemon").Logger,
		metrics: metrics.NewKeypadMetrics(metrics.Default()),
	}

	kc, err := cfg.KeypadConfig()
	if err != nil {
		d.Close()
		return nil, err
	}
	kc.Logger = logger.WithComponent("keypad").Logger
	kc.Metrics = d.metrics

	if cfg.Storage.Enabled {
		d.store, err = store.Open(cfg.Storage.Path)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open colour store: %w", err)
		}
		kc.Store = d.store
	}

	d.keypad, err = keypad.New(kc)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open keypad: %w", err)
	}

	interest, err := cfg.Interest()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.listener, err = gesture.NewListener(d.keypad,
		gesture.WithInterest(interest),
		gesture.WithHoldThreshold(cfg.HoldThreshold()),
		gesture.WithTimelineCapacity(cfg.Gestures.TimelineCapacity),
		gesture.WithClock(kc.Clock),
		gesture.WithMetrics(d.metrics),
		gesture.WithLogger(logger.WithComponent("gesture").Logger),
	)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.queue = gesture.NewQueue()
	d.health = newHealth(d, kc.Clock)
	return d, nil
}

// maxQueueDepth is the backlog above which the daemon reports itself degraded.
const maxQueueDepth = 1000

func newHealth(d *daemon, clk clock.Clock) *health.Checker {
	h := health.NewChecker(clk)
	h.Register("keypad", true, health.Running(func() bool { return !d.keypad.Closed() }))
	h.Register("listener", true, health.Running(d.listener.Running))
	h.Register("queue", false, queueCheck(d.queue))
	if d.store != nil {
		h.Register("store", false, health.Ping(d.store.Ping))
	}
	return h
}

// queueCheck degrades while the consumer lags more than maxQueueDepth
// results behind. It reads the queue itself, so a drained backlog is
// healthy again without waiting for the next key transition.
func queueCheck(q *gesture.Queue) health.Check {
	return health.Threshold("queue depth", func() int64 { return int64(q.Len()) }, maxQueueDepth)
}

// watch applies log level and interest set changes from the config file.
// Other settings need a restart.
func (d *daemon) watch(loader *config.Loader) {
	loader.OnChange(func(_, next *config.Config) {
		if level, err := logging.ParseLevel(next.Logging.Level); err == nil {
			d.logger.SetLevel(level)
		}
		if interest, err := next.Interest(); err == nil {
			d.listener.SetInterest(interest)
		}
	})
	if err := loader.Watch(); err != nil {
		d.log.Warn("config hot reload disabled", "error", err)
	}
}

// Run runs until ctx is done or the listener fails.
func (d *daemon) Run(ctx context.Context, toggleColor string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if d.cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.log.Info("metrics listening", "addr", d.cfg.Metrics.ListenAddr)
			if err := metrics.Serve(ctx, d.cfg.Metrics.ListenAddr, d.metrics.Registry(), d.health.Routes()); err != nil {
				d.log.Error("metrics server failed", "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			d.metrics.UpdateUptime()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	q := d.queue
	wg.Add(1)
	go func() {
		defer wg.Done()
		consume(ctx, q, d.keypad, toggleColor, d.log)
	}()

	d.health.SetReady(true)
	err := d.listener.Run(ctx, q)
	d.health.SetReady(false)
	q.Close()
	cancel()
	wg.Wait()
	return err
}

// consume logs each gesture and toggles the key's indicator on SINGLE.
func consume(ctx context.Context, q *gesture.Queue, kp *keypad.Keypad, toggleColor string, log *slog.Logger) {
	for {
		res, err := q.Get(ctx)
		if err != nil {
			if !errors.Is(err, gesture.ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				log.Warn("consumer stopped", "error", err)
			}
			return
		}
		if res.Empty() {
			continue
		}

		log.Info("gesture", "key", res.Key, "sequence", res.Sequence.String())
		if res.Sequence == gesture.Single {
			if err := kp.LEDToggle(res.Key, toggleColor); err != nil {
				log.Warn("toggle indicator failed", "key", res.Key, "error", err)
			}
		}
	}
}

// Close releases the keypad, store and log file.
func (d *daemon) Close() {
	if d.keypad != nil {
		if err := d.keypad.Close(); err != nil {
			d.log.Warn("close keypad", "error", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Warn("close store", "error", err)
		}
	}
	if d.logger != nil {
		d.logger.Close()
	}
}
