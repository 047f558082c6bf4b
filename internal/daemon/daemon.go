package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/orkestra/internal/config"
	"github.com/harun/orkestra/internal/logger"
	"github.com/harun/orkestra/internal/metrics"
	"github.com/harun/orkestra/internal/telegram"
	"github.com/harun/orkestra/pkg/bus"
	"github.com/harun/orkestra/pkg/cache"
	"github.com/harun/orkestra/pkg/dashboard"
	"github.com/harun/orkestra/pkg/ledger"
	"github.com/harun/orkestra/pkg/llm"
	"github.com/harun/orkestra/pkg/memory"
	"github.com/harun/orkestra/pkg/orchestrator"
	"github.com/harun/orkestra/pkg/router"
	"github.com/harun/orkestra/pkg/scheduler"
	"github.com/harun/orkestra/pkg/webhook"
)

// Daemon assembles the assistant: stores, the request pipeline, and
// the enabled front-ends.
type Daemon struct {
	config   *config.Config
	logger   zerolog.Logger
	closeLog func() error

	// Stores
	bus     *bus.Bus
	cache   *cache.Cache
	ledger  *ledger.Ledger
	memory  *memory.Store
	metrics *metrics.Metrics

	// Pipeline
	taskRouter   *router.Router
	orchestrator *orchestrator.Orchestrator

	// Services
	scheduler     *scheduler.Scheduler
	webhookServer *webhook.Server
	dashboard     *dashboard.Server
	telegramBot   *telegram.Bot

	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	closed    bool
	mu        sync.RWMutex
}

// New creates a daemon instance from configuration.
func New(cfg *config.Config) (*Daemon, error) {
	log, closeLog, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		Console:    true,
		Pretty:     true,
		Redact:     cfg.Logging.Redaction,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxAgeDays: cfg.Logging.MaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		config:   cfg,
		logger:   log,
		closeLog: closeLog,
		metrics:  metrics.New(),
		ctx:      ctx,
		cancel:   cancel,
	}
	d.lifecycle = NewLifecycleManager(d)

	if err := d.initStores(); err != nil {
		cancel()
		d.closeStores()
		closeLog()
		return nil, err
	}
	if err := d.initPipeline(); err != nil {
		cancel()
		d.closeStores()
		closeLog()
		return nil, err
	}
	if err := d.initServices(); err != nil {
		cancel()
		d.closeStores()
		closeLog()
		return nil, err
	}

	return d, nil
}

func (d *Daemon) initStores() error {
	dataDir := d.config.DataDir

	b, err := bus.New(filepath.Join(dataDir, "messages.db"), d.logger)
	if err != nil {
		return fmt.Errorf("failed to open message log: %w", err)
	}
	d.bus = b

	c, err := cache.New(
		filepath.Join(dataDir, "cache.db"),
		time.Duration(d.config.Cache.TTLSeconds)*time.Second,
		d.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to open response cache: %w", err)
	}
	d.cache = c

	l, err := ledger.New(filepath.Join(dataDir, "costs.db"), d.logger)
	if err != nil {
		return fmt.Errorf("failed to open cost ledger: %w", err)
	}
	d.ledger = l

	var embedder memory.EmbeddingProvider
	if key := d.config.OpenAIKey(); key != "" {
		embedder = memory.NewOpenAIEmbedder(key, "text-embedding-3-small")
	}
	m, err := memory.NewStore(memory.Config{
		DBPath:   filepath.Join(dataDir, "memory.db"),
		Logger:   d.logger,
		Embedder: embedder,
	})
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	d.memory = m

	return nil
}

func (d *Daemon) initPipeline() error {
	creds := llm.Credentials{
		OpenAIKey:    d.config.OpenAIKey(),
		AnthropicKey: d.config.AnthropicKey(),
	}

	if d.config.UseSubagents {
		d.taskRouter = router.New(router.Config{
			Bus:         d.bus,
			Routing:     d.config.Routing,
			Credentials: creds,
			Logger:      d.logger,
		})
	}

	fallback := orchestrator.FallbackConfig{}
	if d.config.Ollama.Enabled {
		fallback.Enabled = true
		fallback.Client = llm.NewOllamaClient(d.config.Ollama.BaseURL)
		if len(d.config.Ollama.Models) > 0 {
			fallback.Model = d.config.Ollama.Models[0]
		}
	}

	d.orchestrator = orchestrator.New(orchestrator.Config{
		Bus:            d.bus,
		Cache:          d.cache,
		Ledger:         d.ledger,
		Memory:         d.memory,
		Router:         d.taskRouter,
		Logger:         d.logger,
		Model:          d.config.DefaultModel,
		BudgetEnabled:  d.config.Budget.Enabled,
		DailyBudgetUSD: d.config.Budget.DailyUSD,
		Credentials:    creds,
		Fallback:       fallback,
		Metrics:        d.metrics,
	})

	return nil
}

func (d *Daemon) initServices() error {
	if d.config.Heartbeat.Enabled {
		interval := time.Duration(d.config.Heartbeat.IntervalSeconds) * time.Second
		d.scheduler = scheduler.New(interval, d.heartbeat, d.logger)
	}

	if d.config.Webhook.Enabled {
		registry := webhook.NewRegistry()
		if _, err := os.Stat(d.config.Webhook.RegistryPath); err == nil {
			if err := registry.LoadFile(d.config.Webhook.RegistryPath, d.webhookHandler); err != nil {
				return fmt.Errorf("failed to load webhook registry: %w", err)
			}
		}
		d.webhookServer = webhook.NewServer(webhook.ServerOptions{
			Host:               d.config.Webhook.Host,
			Port:               d.config.Webhook.Port,
			RateLimitPerMinute: d.config.Webhook.RateLimitPerMinute,
		}, registry, d.metrics, d.logger)
	}

	if d.config.Dashboard.Enabled {
		srv, err := dashboard.NewServer(dashboard.Config{
			Host:         d.config.Dashboard.Host,
			Port:         d.config.Dashboard.Port,
			PasswordHash: d.config.Dashboard.PasswordHash,
			OutputDir:    d.config.OutputDir,
			Pipeline:     d.orchestrator,
			Bus:          d.bus,
			Ledger:       d.ledger,
			Memory:       d.memory,
			Metrics:      d.metrics,
			Logger:       d.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create dashboard: %w", err)
		}
		d.dashboard = srv
	}

	if d.config.Telegram.Enabled {
		bot, err := telegram.New(telegram.Config{
			Telegram: &d.config.Telegram,
			Pipeline: d.orchestrator,
			Costs:    d.ledger,
			Memory:   d.memory,
			Metrics:  d.metrics,
			Logger:   d.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create telegram bot: %w", err)
		}
		d.telegramBot = bot
	}

	return nil
}

// heartbeat is the scheduler callback: it surfaces daily spend and
// prunes nothing else for now.
func (d *Daemon) heartbeat(ctx context.Context) {
	daily, err := d.ledger.DailyTotal()
	if err != nil {
		d.logger.Warn().Err(err).Msg("Heartbeat failed to read daily spend")
		return
	}

	count, err := d.bus.Count()
	if err != nil {
		d.logger.Warn().Err(err).Msg("Heartbeat failed to read message count")
		return
	}

	d.logger.Info().
		Float64("daily_usd", daily).
		Int64("messages", count).
		Msg("Heartbeat")
}

// webhookHandler feeds a webhook payload through the pipeline. The
// payload's "message" field is the task text.
func (d *Daemon) webhookHandler(ctx context.Context, payload map[string]interface{}) (string, error) {
	message, _ := payload["message"].(string)
	if message == "" {
		if raw, ok := payload["raw"].(string); ok {
			message = raw
		}
	}
	if message == "" {
		return "", fmt.Errorf("payload has no message")
	}

	var reply string
	for token := range d.orchestrator.Process(ctx, message, "webhook", false) {
		reply += token
	}
	return reply, nil
}

// Start brings the daemon up and begins serving.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("daemon is stopped")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.lifecycle.Start(); err != nil {
		return err
	}

	d.logger.Info().
		Str("data_dir", d.config.DataDir).
		Str("model", d.config.DefaultModel).
		Msg("Starting daemon")

	if d.scheduler != nil {
		if err := d.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}
	if d.webhookServer != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.webhookServer.Start(); err != nil {
				d.logger.Error().Err(err).Msg("Webhook server error")
			}
		}()
	}
	if d.dashboard != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.dashboard.Start(); err != nil {
				d.logger.Error().Err(err).Msg("Dashboard server error")
			}
		}()
	}
	if d.telegramBot != nil {
		if err := d.telegramBot.Start(); err != nil {
			return fmt.Errorf("failed to start telegram bot: %w", err)
		}
	}

	d.logger.Info().Msg("Daemon started")
	return nil
}

// Run starts the daemon and blocks until a termination signal.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
	case <-d.ctx.Done():
	}

	return d.Stop()
}

// Stop shuts everything down in reverse dependency order.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	wasRunning := d.running
	d.running = false
	d.closed = true
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping daemon")
	d.cancel()

	if wasRunning {
		if d.telegramBot != nil && d.telegramBot.IsRunning() {
			if err := d.telegramBot.Stop(); err != nil {
				d.logger.Warn().Err(err).Msg("Failed to stop telegram bot")
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if d.dashboard != nil {
			if err := d.dashboard.Stop(shutdownCtx); err != nil {
				d.logger.Warn().Err(err).Msg("Failed to stop dashboard")
			}
		}
		if d.webhookServer != nil {
			if err := d.webhookServer.Stop(shutdownCtx); err != nil {
				d.logger.Warn().Err(err).Msg("Failed to stop webhook server")
			}
		}
		if d.scheduler != nil {
			d.scheduler.Stop()
		}

		d.wg.Wait()

		if err := d.lifecycle.Stop(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to clean up PID file")
		}
	}

	d.closeStores()
	d.logger.Info().Msg("Daemon stopped")
	return d.closeLog()
}

// closeStores closes whichever stores are open, in reverse open order.
// Fields may still be nil when store setup failed partway.
func (d *Daemon) closeStores() {
	var closers []interface{ Close() error }
	if d.memory != nil {
		closers = append(closers, d.memory)
	}
	if d.ledger != nil {
		closers = append(closers, d.ledger)
	}
	if d.cache != nil {
		closers = append(closers, d.cache)
	}
	if d.bus != nil {
		closers = append(closers, d.bus)
	}
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

// Status describes the running daemon.
type Status struct {
	Running  bool
	PID      int
	Uptime   time.Duration
	Messages int64
	DailyUSD float64
}

// Status reports current daemon state.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Status{Running: d.running, PID: os.Getpid()}
	if d.running {
		s.Uptime = time.Since(d.startTime)
	}
	if count, err := d.bus.Count(); err == nil {
		s.Messages = count
	}
	if daily, err := d.ledger.DailyTotal(); err == nil {
		s.DailyUSD = daily
	}
	return s
}

// Process exposes the pipeline for one-shot CLI usage.
func (d *Daemon) Process(ctx context.Context, message, source string, stream bool) <-chan string {
	return d.orchestrator.Process(ctx, message, source, stream)
}
