// Package listener is the long-running loop: it keeps the board in sync with
// the quotation store, pulls supplier replies off the mailbox, and feeds
// inventory snapshots to the replenishment watcher.
package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"padoca/internal/board"
	"padoca/internal/config"
	"padoca/internal/mail"
	gmailconnector "padoca/internal/mail/gmail"
	imapconnector "padoca/internal/mail/imap"
	"padoca/internal/replies"
	"padoca/internal/storage"
)

type Service struct {
	db        *storage.DB
	cfg       config.Config
	board     *board.Board
	fetcher   *replies.FetchService
	processor *replies.Service
	log       *zap.Logger
}

func NewService(db *storage.DB, cfg config.Config, b *board.Board, processor *replies.Service, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Service{db: db, cfg: cfg, board: b, processor: processor, log: log}

	connector, err := makeConnector(cfg, log)
	if err != nil {
		return nil, err
	}
	if connector != nil {
		s.fetcher = replies.NewFetchService(db, cfg.RawMailDir, connector)
	}
	return s, nil
}

// Run blocks until the context is cancelled. The quotation subscription keeps
// reconciling in the background; the cycle loop does the mailbox and inventory
// work at the configured interval. A failed cycle is logged and retried on the
// next tick.
func (s *Service) Run(ctx context.Context) error {
	stop, err := s.db.SubscribeQuotations(
		time.Duration(s.cfg.SubscribePollSec)*time.Second,
		func(docs []map[string]any) { s.board.HandleSnapshot(docs) },
	)
	if err != nil {
		return err
	}
	defer stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Warn("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.ListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	fetched := 0
	if s.fetcher != nil {
		res, err := s.fetcher.FetchAndStore(s.cfg.ListenerLabel, s.cfg.ListenerFetchMax)
		if err != nil {
			return fmt.Errorf("fetch replies: %w", err)
		}
		fetched = res.Fetched
	}

	processed, err := s.processor.ProcessPending(ctx, s.cfg.ListenerProcessBatch)
	if err != nil {
		return fmt.Errorf("process replies: %w", err)
	}

	items, err := s.db.ListInventory()
	if err != nil {
		return fmt.Errorf("read inventory: %w", err)
	}
	alerts := s.board.HandleInventory(items)

	s.log.Info("listener cycle done",
		zap.Int("fetched", fetched),
		zap.Int("processed", processed),
		zap.Int("alerts", len(alerts)),
	)
	return nil
}

func makeConnector(cfg config.Config, log *zap.Logger) (mail.Connector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ListenerProvider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg, log)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", cfg.ListenerProvider)
	}
}
