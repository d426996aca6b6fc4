// Package mail defines the outbound and inbound email surfaces. Providers live
// in the gmail and imap subpackages; LogMailer is the development stand-in that
// only logs.
package mail

import (
	"context"

	"go.uber.org/zap"

	"padoca/internal"
)

// Mailer sends quotation emails. Send failures after a successful local
// persist are non-fatal to the caller, so implementations should make errors
// descriptive rather than retrying forever.
type Mailer interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
	ValidateToken(ctx context.Context) error
	Send(ctx context.Context, email internal.OutboundEmail) error
}

// Connector fetches raw supplier replies from a mailbox.
type Connector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}

// LogMailer pretends to send. Used when no provider is configured.
type LogMailer struct {
	log       *zap.Logger
	connected bool
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Connect(context.Context) error { m.connected = true; return nil }

func (m *LogMailer) Disconnect() { m.connected = false }

func (m *LogMailer) IsConnected() bool { return m.connected }

func (m *LogMailer) ValidateToken(context.Context) error { return nil }

func (m *LogMailer) Send(_ context.Context, email internal.OutboundEmail) error {
	m.log.Info("mail send (log only)",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.Int("bodyLen", len(email.Body)),
	)
	return nil
}
