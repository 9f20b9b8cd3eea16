// Package mail polls an IMAP mailbox for alarm messages.
package mail

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"golang.org/x/text/encoding/charmap"

	"github.com/TimUx/alarm-monitor/internal/config"
)

// Message is a raw RFC 822 message and its mailbox UID.
type Message struct {
	UID uint32
	Raw []byte
}

// Mailbox returns the messages whose UID is greater than lastUID, in UID order.
type Mailbox interface {
	FetchSince(ctx context.Context, lastUID uint32) ([]Message, error)
}

// IMAPMailbox implements Mailbox with one short-lived IMAP session per call.
type IMAPMailbox struct {
	cfg      config.MailConfig
	criteria *imap.SearchCriteria
	timeout  time.Duration
	logger   *slog.Logger
}

// NewIMAPMailbox validates the search criterion and returns a mailbox.
func NewIMAPMailbox(cfg config.MailConfig, timeout time.Duration, logger *slog.Logger) (*IMAPMailbox, error) {
	criteria, err := SearchCriteria(cfg.Search)
	if err != nil {
		return nil, err
	}
	return &IMAPMailbox{
		cfg:      cfg,
		criteria: criteria,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// SearchCriteria maps a search keyword to IMAP search criteria.
func SearchCriteria(keyword string) (*imap.SearchCriteria, error) {
	criteria := imap.NewSearchCriteria()
	switch strings.ToUpper(strings.TrimSpace(keyword)) {
	case "", "UNSEEN":
		criteria.WithoutFlags = []string{imap.SeenFlag}
	case "ALL":
	case "SEEN":
		criteria.WithFlags = []string{imap.SeenFlag}
	case "RECENT":
		criteria.WithFlags = []string{imap.RecentFlag}
	case "ANSWERED":
		criteria.WithFlags = []string{imap.AnsweredFlag}
	case "UNANSWERED":
		criteria.WithoutFlags = []string{imap.AnsweredFlag}
	default:
		return nil, fmt.Errorf("unsupported IMAP search criterion %q", keyword)
	}
	return criteria, nil
}

// FetchSince logs in, searches the mailbox and fetches every matching message
// newer than lastUID.
func (m *IMAPMailbox) FetchSince(ctx context.Context, lastUID uint32) ([]Message, error) {
	c, err := m.dial()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Logout(); err != nil {
			m.logger.Debug("imap logout failed", "error", err)
		}
	}()

	// Unblock pending commands when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := m.login(c); err != nil {
		return nil, err
	}
	if _, err := c.Select(m.cfg.Mailbox, false); err != nil {
		return nil, fmt.Errorf("select %s: %w", m.cfg.Mailbox, err)
	}

	uids, err := c.UidSearch(m.criteria)
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	uids = newerThan(uids, lastUID)
	if len(uids) == 0 {
		return nil, nil
	}
	m.logger.Debug("new messages found", "count", len(uids), "mailbox", m.cfg.Mailbox)

	return m.fetch(c, uids)
}

func (m *IMAPMailbox) dial() (*client.Client, error) {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: m.timeout}

	var (
		c   *client.Client
		err error
	)
	if m.cfg.UseSSL {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	c.Timeout = m.timeout
	return c, nil
}

// login tries the credentials as UTF-8 first, then as ISO-8859-1 for servers
// that reject multi-byte credentials.
func (m *IMAPMailbox) login(c *client.Client) error {
	err := c.Login(m.cfg.Username, m.cfg.Password)
	if err == nil {
		return nil
	}
	user, userOK := latin1(m.cfg.Username)
	pass, passOK := latin1(m.cfg.Password)
	if !userOK || !passOK || (user == m.cfg.Username && pass == m.cfg.Password) {
		return fmt.Errorf("imap login: %w", err)
	}

	m.logger.Debug("imap login failed, retrying with latin-1 credentials", "error", err)
	if retryErr := c.Login(user, pass); retryErr != nil {
		return fmt.Errorf("imap login: %w", errors.Join(err, retryErr))
	}
	m.logger.Info("imap login succeeded with latin-1 credentials")
	return nil
}

func (m *IMAPMailbox) fetch(c *client.Client, uids []uint32) ([]Message, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, ch)
	}()

	messages := make([]Message, 0, len(uids))
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil {
			m.logger.Warn("message without body", "uid", msg.Uid)
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			m.logger.Warn("read message body failed", "uid", msg.Uid, "error", err)
			continue
		}
		messages = append(messages, Message{UID: msg.Uid, Raw: raw})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("uid fetch: %w", err)
	}

	slices.SortFunc(messages, func(a, b Message) int {
		return cmp.Compare(a.UID, b.UID)
	})
	return messages, nil
}

func newerThan(uids []uint32, lastUID uint32) []uint32 {
	out := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if uid > lastUID {
			out = append(out, uid)
		}
	}
	slices.Sort(out)
	return out
}

// latin1 encodes s as ISO-8859-1. ok is false when s has characters outside
// the Latin-1 range.
func latin1(s string) (string, bool) {
	out, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return "", false
	}
	return out, true
}
