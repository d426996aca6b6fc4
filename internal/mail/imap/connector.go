// Package imap fetches supplier replies from a generic IMAP mailbox. It is
// fetch-only; pairing it with a separate Mailer (or the log mailer) covers
// providers without a REST API.
package imap

import (
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"padoca/internal"
	"padoca/internal/config"
)

// Replies land within days of the outreach email; anything older belongs to a
// quotation that was already closed or chased by phone. Bounding the search
// keeps a crowded shared inbox from being rescanned on every cycle.
const replyLookback = 14 * 24 * time.Hour

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool
	log      *zap.Logger
}

func NewConnector(cfg config.Config, log *zap.Logger) (*Connector, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_USER", cfg.IMAPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_PASSWORD", cfg.IMAPPassword); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
		log:      log,
	}, nil
}

// FetchInbox pulls unseen messages from the reply window. A message that fails
// to download is logged and skipped; the rest of the batch still goes through,
// so one broken mail cannot stall reply processing. Skipped messages stay
// unseen and are retried on the next cycle.
func (c *Connector) FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error) {
	client, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	if _, err := client.Select(label, false); err != nil {
		return nil, fmt.Errorf("select %s: %w", label, err)
	}

	ids, err := c.searchReplies(client)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > max {
		ids = ids[len(ids)-max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(ids))
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- client.Fetch(seqset, items, messages) }()

	out := make([]internal.FetchedMailMessage, 0, len(ids))
	var fetched []uint32
	for msg := range messages {
		fetchedMsg, ok := c.toFetchedMessage(msg, section)
		if !ok {
			continue
		}
		if c.isOwnMessage(fetchedMsg.From) {
			// Sent-folder copies routed back into INBOX are outreach, not
			// replies.
			continue
		}
		out = append(out, fetchedMsg)
		fetched = append(fetched, msg.SeqNum)
	}

	if err := <-fetchDone; err != nil {
		return nil, err
	}

	if c.markSeen && len(fetched) > 0 {
		c.flagSeen(client, fetched)
	}
	return out, nil
}

func (c *Connector) dial() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := client.Login(c.user, c.password); err != nil {
		client.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return client, nil
}

func (c *Connector) searchReplies(client *imapclient.Client) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-replyLookback)
	return client.Search(criteria)
}

func (c *Connector) toFetchedMessage(msg *imap.Message, section *imap.BodySectionName) (internal.FetchedMailMessage, bool) {
	if msg == nil {
		return internal.FetchedMailMessage{}, false
	}
	body := msg.GetBody(section)
	if body == nil {
		c.log.Warn("imap message without body section", zap.Uint32("uid", msg.Uid))
		return internal.FetchedMailMessage{}, false
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		c.log.Warn("imap message download failed", zap.Uint32("uid", msg.Uid), zap.Error(err))
		return internal.FetchedMailMessage{}, false
	}

	messageID := ""
	subject := ""
	from := ""
	if msg.Envelope != nil {
		messageID = msg.Envelope.MessageId
		subject = msg.Envelope.Subject
		from = formatAddresses(msg.Envelope.From)
	}
	if messageID == "" {
		messageID = fmt.Sprintf("imap-%d", msg.Uid)
	}

	received := time.Now().UTC().Format(time.RFC3339)
	if !msg.InternalDate.IsZero() {
		received = msg.InternalDate.UTC().Format(time.RFC3339)
	}

	return internal.FetchedMailMessage{
		Provider:   "imap",
		MessageID:  messageID,
		Subject:    subject,
		From:       from,
		ReceivedAt: received,
		Raw:        raw,
	}, true
}

func (c *Connector) isOwnMessage(from string) bool {
	return c.user != "" && strings.Contains(strings.ToLower(from), strings.ToLower(c.user))
}

// flagSeen marks only the messages that actually made it into the batch, so a
// skipped message is picked up again next cycle. A flag failure is not fatal:
// the reply ledger dedupes on message id anyway.
func (c *Connector) flagSeen(client *imapclient.Client, seqNums []uint32) {
	seen := new(imap.SeqSet)
	seen.AddNum(seqNums...)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := client.Store(seen, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		c.log.Warn("imap mark seen failed", zap.Error(err))
	}
}

func formatAddresses(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := strings.Trim(strings.Join([]string{a.MailboxName, a.HostName}, "@"), "@")
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, email))
		} else {
			parts = append(parts, email)
		}
	}
	return strings.Join(parts, ", ")
}
