// Package notify delivers a report file to the operator by e-mail or Slack.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type Message struct {
	Subject string
	Body    string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NotificationError is returned when a message could not be delivered.
// Delivery is never retried.
type NotificationError struct {
	Channel string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("error sending %s notification: %s", e.Channel, e.Err.Error())
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

func DefaultSubject(filename string) string {
	return fmt.Sprintf("CSV Validation for %s", filename)
}

// FileMessage reads path into a message. An empty subject is replaced by
// DefaultSubject.
func FileMessage(path string, subject string) (Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return Message{}, errors.Wrapf(err, "error reading %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReaderMessage(f, filepath.Base(path), subject)
}

// ReaderMessage reads the file called name from r.
func ReaderMessage(r io.Reader, name string, subject string) (Message, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Message{}, errors.Wrapf(err, "error reading %s", name)
	}
	if subject == "" {
		subject = DefaultSubject(name)
	}
	return Message{Subject: subject, Body: string(b)}, nil
}

const defaultSMTPTimeout = 5 * time.Second

// FromEnv configures a notifier from SLACK_TOKEN / SLACK_CHANNEL, or failing
// that SMTP_HOST, SMTP_PORT, SMTP_FROM and SMTP_TO (comma separated).
func FromEnv(lookup func(key string) string) (Notifier, error) {
	if token := lookup("SLACK_TOKEN"); token != "" {
		channel := lookup("SLACK_CHANNEL")
		if channel == "" {
			return nil, errors.Newf("SLACK_CHANNEL must be set with SLACK_TOKEN")
		}
		return NewSlackNotifier(token, channel), nil
	}
	if host := lookup("SMTP_HOST"); host != "" {
		cfg := SMTPConfig{
			Host:    host,
			Port:    25,
			From:    lookup("SMTP_FROM"),
			Timeout: defaultSMTPTimeout,
		}
		if p := lookup("SMTP_PORT"); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid SMTP_PORT %q", p)
			}
			cfg.Port = port
		}
		for _, to := range strings.Split(lookup("SMTP_TO"), ",") {
			if to = strings.TrimSpace(to); to != "" {
				cfg.To = append(cfg.To, to)
			}
		}
		n, err := NewSMTPNotifier(cfg)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, errors.Newf("no notifier configured: set SLACK_TOKEN or SMTP_HOST")
}
