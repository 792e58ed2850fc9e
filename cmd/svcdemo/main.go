// Package main implements svcdemo, a small always-on tree of
// services exercising the full goservice engine: a root supervisor
// with a heartbeat timer task and a worker task as children, hosted
// under a suture-backed process supervisor and reachable for
// start/stop/restart via a control socket (see cmd/svcctl).
//
// Usage:
//
//	svcdemo [options]
//
// Options:
//
//	--config=PATH   Path to YAML config file (default: /etc/goservice/config.yaml)
//	--socket=PATH   Path to the control Unix socket (default: /tmp/svcdemo.sock)
//	--lock=PATH     Path to the single-instance lock file (default: /tmp/svcdemo.lock)
//	--log-level=LEVEL  Log level: debug, info, warn, error (default: info)
//	--help          Show this help message
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ksulejczak/goservice/config"
	"github.com/ksulejczak/goservice/control"
	"github.com/ksulejczak/goservice/lock"
	"github.com/ksulejczak/goservice/roothost"
	"github.com/ksulejczak/goservice/service"
)

var (
	configPath = flag.String("config", config.DefaultFilePath, "Path to YAML config file")
	socketPath = flag.String("socket", "/tmp/svcdemo.sock", "Path to control Unix socket")
	lockPath   = flag.String("lock", "/tmp/svcdemo.lock", "Path to single-instance lock file")
	logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showHelp   = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))

	instanceLock, err := lock.New(*lockPath)
	if err != nil {
		logger.Error("failed to build instance lock", "error", err)
		os.Exit(1)
	}
	if err := instanceLock.Acquire(context.Background(), time.Second); err != nil {
		logger.Error("another svcdemo instance is already running", "lock", *lockPath, "error", err)
		os.Exit(1)
	}
	defer instanceLock.Close()

	loader, err := config.NewLoader(config.WithYAMLFile(*configPath))
	if err != nil {
		logger.Error("failed to build config loader", "error", err)
		os.Exit(1)
	}
	cfg, err := loader.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	root, registry := buildTree(cfg, logger)

	tree := roothost.New("svcdemo", roothost.Config{
		ShutdownTimeout:  cfg.Tree.ShutdownTimeout,
		FailureThreshold: cfg.Tree.FailureThreshold,
		FailureDecay:     cfg.Tree.FailureDecay,
		FailureBackoff:   cfg.Tree.FailureBackoff,
	}, logger)
	tree.AddRoot("demo-root", root)

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	ctlServer := control.NewServer(*socketPath, registry, logger)
	ctlErrCh := make(chan error, 1)
	go func() { ctlErrCh <- ctlServer.Serve(ctx) }()

	treeErrCh := tree.ServeBackground(ctx)

	logger.Info("svcdemo started", "socket", *socketPath)

	select {
	case err := <-treeErrCh:
		if err != nil {
			logger.Error("tree stopped with error", "error", err)
		}
	case err := <-ctlErrCh:
		if err != nil {
			logger.Error("control server stopped with error", "error", err)
		}
	}

	<-ctx.Done()
	logger.Info("svcdemo stopped")
}

// buildTree assembles the demo's service.Service tree: a root
// supervisor with a heartbeat timer task and a worker task as
// registered children, every node also added to registry so
// cmd/svcctl can address it by name.
func buildTree(cfg config.Config, logger *slog.Logger) (*service.Service, *control.Registry) {
	registry := control.NewRegistry()

	root := service.New("demo-root", nil, logger)

	heartbeat := service.New("heartbeat", nil, logger)
	heartbeat.AddTimerTask("tick", cfg.Tasks.HeartbeatInterval, func(ctx context.Context) error {
		logger.Info("heartbeat")
		return nil
	})

	worker := service.FromFunc("worker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	root.AddDependency(heartbeat)
	root.AddDependency(worker)

	registry.Add("demo-root", root)
	registry.Add("heartbeat", heartbeat)
	registry.Add("worker", worker)

	return root, registry
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

