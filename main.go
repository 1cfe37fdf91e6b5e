package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"procscribe/app/config"
	"procscribe/app/mcpserver"
	"procscribe/app/server"
	"procscribe/app/service/conversation"
	"procscribe/app/service/diagram"
	"procscribe/app/service/document"
	"procscribe/app/service/extract"
	"procscribe/app/service/intent"
	"procscribe/app/service/prompt"
	"procscribe/app/service/queue"
	"procscribe/app/service/store"
	"procscribe/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, prompt.New)
	do.Provide(di, intent.New)
	do.Provide(di, extract.New)
	do.Provide(di, document.New)
	do.Provide(di, diagram.New)
	do.Provide(di, store.New)
	do.Provide(di, queue.New)
	do.Provide(di, conversation.New)
	do.Provide(di, server.New)
	do.Provide(di, mcpserver.New)

	httpServer, err := do.Invoke[*server.Server](di)
	if err != nil {
		log.Fatalf("service init failed: %v", err)
	}

	slog.Info("Service started",
		"http", cfg.HTTP.Listen,
		"mcp", cfg.MCP.Enabled,
	)

	group, groupCtx := errgroup.WithContext(appCtx)

	group.Go(func() error {
		return httpServer.Run(groupCtx)
	})

	if cfg.MCP.Enabled {
		mcpServer := do.MustInvoke[*mcpserver.Server](di)
		group.Go(func() error {
			return mcpServer.Run(groupCtx)
		})
	}

	if err = group.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
		return
	}

	log.Info("Shutting down...")
}
