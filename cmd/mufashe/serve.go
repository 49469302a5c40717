package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"mufashe-rag/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr      string
	serveAccessLog bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question answering HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")
	serveCmd.Flags().BoolVar(&serveAccessLog, "access-log", true, "log every request")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	service, store, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	app := server.New(service, server.Options{
		RequestTimeout:   cfg.RequestTimeout(),
		AccessLog:        serveAccessLog,
		MinQuestionChars: cfg.Retrieval.MinQuestionChars,
		Logger:           log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "collection", cfg.Store.Collection)
		errCh <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
