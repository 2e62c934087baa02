// File: cmd/chatserverd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Command chatserverd runs the chat server: static assets and WebSocket
// upgrades on one port, every text frame rebroadcast to all peers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sethvargo/go-envconfig"
	"log/slog"

	"github.com/codegod100/chatserver/chat"
	"github.com/codegod100/chatserver/server"
)

type Env struct {
	Port      int    `env:"CHAT_PORT,default=8080"`
	StaticDir string `env:"CHAT_STATIC_DIR,default=static"`
	LogLevel  string `env:"CHAT_LOG_LEVEL,default=info"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := doMain(logger); err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func doMain(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := Env{}
	if err := envconfig.Process(ctx, &env); err != nil {
		return err
	}

	port := flag.Int("port", env.Port, "listening port")
	staticDir := flag.String("static", env.StaticDir, "static asset directory")
	flag.Parse()

	level := slog.LevelInfo
	if env.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))

	srv := server.New(
		server.WithLogger(logger),
		server.WithStaticDir(*staticDir),
	)
	if err := srv.Listen(*port); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", slog.String("signal", sig.String()))
		srv.Shutdown()
	}()

	return chat.NewRelay(srv, logger).Run()
}
