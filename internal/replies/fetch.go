// Package replies owns the supplier-reply pipeline: fetching raw messages into
// the replies ledger, extracting priced lines from their bodies and
// attachments, and folding the result back into the matching quotation.
package replies

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"padoca/internal"
	"padoca/internal/mail"
	"padoca/internal/storage"
)

type FetchService struct {
	db         *storage.DB
	connector  mail.Connector
	rawMailDir string
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector mail.Connector) *FetchService {
	return &FetchService{db: db, connector: connector, rawMailDir: rawMailDir}
}

// FetchAndStore pulls unread messages and records each one exactly once: the
// raw RFC822 bytes land in a content-addressed .eml file, the row in the
// replies table. Re-fetching the same provider message is a no-op upsert.
func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		if _, err := s.store(msg); err != nil {
			return FetchResult{}, err
		}
		stored++
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}

func (s *FetchService) store(msg internal.FetchedMailMessage) (internal.ReplyRow, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.ReplyRow{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.ReplyRow{}, err
		}
	}

	return s.db.UpsertReply(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
}
