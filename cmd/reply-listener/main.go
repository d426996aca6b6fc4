package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"padoca/internal/analyze"
	"padoca/internal/board"
	"padoca/internal/config"
	"padoca/internal/listener"
	"padoca/internal/mail"
	gmailconnector "padoca/internal/mail/gmail"
	"padoca/internal/replies"
	"padoca/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := zap.NewProduction()
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	b := board.New(db, db, makeMailer(cfg, log), nil, log, time.Duration(cfg.DuplicateWindowMin)*time.Minute)
	must(b.Load())

	processor := replies.NewService(db, analyze.New(cfg, log), log)
	svc, err := listener.NewService(db, cfg, b, processor, log)
	must(err)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func makeMailer(cfg config.Config, log *zap.Logger) mail.Mailer {
	if cfg.GmailClientID != "" && cfg.GmailClientSecret != "" && cfg.GmailRefreshToken != "" {
		conn, err := gmailconnector.NewConnector(cfg)
		if err == nil {
			return conn
		}
		log.Warn("gmail mailer unavailable, falling back to log mailer", zap.Error(err))
	}
	return mail.NewLogMailer(log)
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
