package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"receiptbook/internal/app"
	"receiptbook/internal/config"
	"receiptbook/internal/listener"
	"receiptbook/internal/logger"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	must(err)
	defer a.Close()
	if a.Mail == nil {
		must(fmt.Errorf("mail provider %q is not configured", cfg.MailProvider))
	}

	svc := listener.NewService(a.Processor, cfg, log)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
