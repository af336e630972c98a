package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/c360studio/semfolio/config"
	"github.com/c360studio/semfolio/conversation"
	"github.com/c360studio/semfolio/engine"
	"github.com/c360studio/semfolio/llm"
	"github.com/c360studio/semfolio/metrics"
	"github.com/c360studio/semfolio/model"
	"github.com/c360studio/semfolio/orchestration"
	"github.com/c360studio/semfolio/specialty"
	"github.com/c360studio/semfolio/storage"
	"github.com/c360studio/semfolio/workflow"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App wires configuration into a running orchestration service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Service     *orchestration.Service
	Engine      *engine.Engine[workflow.State, workflow.Update]
	Store       engine.Store
	Specialties *specialty.Registry

	closers []func(context.Context) error
}

// appDeps are the collaborators NewApp would otherwise build itself.
type appDeps struct {
	messages conversation.Repository
	model    llm.StructuredInvoker
}

// NewApp builds every component named by cfg. The caller must Close it.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps appDeps) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	a.Specialties, err = specialty.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	if cfg.Specialties.Dir != "" {
		if err := a.Specialties.LoadDir(cfg.Specialties.Dir); err != nil {
			return nil, fmt.Errorf("load specialties: %w", err)
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = a.startMetrics()
	}

	invoker := deps.model
	if invoker == nil {
		invoker, err = a.buildModel()
		if err != nil {
			return nil, err
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	a.Store = store

	messages := deps.messages
	if messages == nil {
		messages = conversation.NewMemoryRepository()
	}

	temperature := cfg.Model.Temperature
	g, err := workflow.Definition(&workflow.Deps{
		Messages:    messages,
		Model:       invoker,
		Specialties: a.Specialties,
		Tuning:      cfg.Workflow,
		Logger:      logger,
		Metrics:     m,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if m != nil {
		engineOpts = append(engineOpts, engine.WithObserver(m))
	}
	a.Engine = engine.New(g, store, engineOpts...)
	a.Service = orchestration.NewService(a.Engine, messages, a.Specialties,
		orchestration.WithLogger(logger),
		orchestration.WithMessageLimit(cfg.Workflow.MessageLimit))
	return a, nil
}

// Close releases everything NewApp opened, newest first.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("Shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) buildModel() (llm.StructuredInvoker, error) {
	registry := model.NewDefaultRegistry()
	if a.cfg.Model.Registry != "" {
		loaded, err := model.LoadFromFile(a.cfg.Model.Registry)
		if err != nil {
			return nil, fmt.Errorf("load model registry: %w", err)
		}
		registry = loaded
	}
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("model registry: %w", err)
	}

	client := llm.NewClient(registry,
		llm.WithLogger(a.logger),
		llm.WithTimeout(a.cfg.Model.Timeout))
	return llm.NewStructured(client, llm.WithStructuredLogger(a.logger)), nil
}

func (a *App) openStore(ctx context.Context) (engine.Store, error) {
	cp := a.cfg.Checkpoint
	a.logger.Debug("Opening checkpoint store", "backend", cp.Backend, "path", cp.Path)

	switch cp.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil

	case config.BackendSQLite:
		s, err := storage.NewSQLite(cp.Path)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return s.Close() })
		return s, nil

	case config.BackendBadger:
		s, err := storage.NewBadger(storage.BadgerConfig{
			Path:       cp.Path,
			SyncWrites: true,
			Logger:     a.logger.With("component", "badger"),
		})
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return s.Close() })
		return s, nil

	case config.BackendNATS:
		nc, err := a.connectNATS(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewNATS(ctx, nc,
			storage.WithBucket(cp.Bucket),
			storage.WithNATSLogger(a.logger))
	}
	return nil, fmt.Errorf("unknown checkpoint backend %q", cp.Backend)
}

func (a *App) connectNATS(ctx context.Context) (*natsclient.Client, error) {
	url := a.cfg.NATS.URL
	if url == "" || a.cfg.NATS.Embedded {
		ns, err := a.startEmbeddedNATS()
		if err != nil {
			return nil, err
		}
		url = ns.ClientURL()
	}

	a.logger.Info("Connecting to NATS", "url", url)
	client, err := natsclient.NewClient(url,
		natsclient.WithName("semfolio"),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("NATS connection failed: %w", err)
	}
	a.onClose(client.Close)

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection failed: %w", err)
	}
	return client, nil
}

// startEmbeddedNATS runs an in-process JetStream server. Its store lives
// next to the checkpoint path so threads survive between invocations.
func (a *App) startEmbeddedNATS() (*server.Server, error) {
	storeDir := a.cfg.Checkpoint.Path
	if storeDir == "" {
		storeDir = filepath.Join(".semfolio", "nats")
	}
	opts := &server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server failed to start")
	}
	a.onClose(func(context.Context) error {
		ns.Shutdown()
		ns.WaitForShutdown()
		return nil
	})
	a.logger.Debug("Embedded NATS started", "url", ns.ClientURL(), "store_dir", storeDir)
	return ns, nil
}

func (a *App) startMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "addr", srv.Addr, "error", err)
		}
	}()
	a.onClose(srv.Shutdown)
	a.logger.Info("Serving metrics", "addr", srv.Addr)
	return m
}
