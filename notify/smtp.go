package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type SMTPConfig struct {
	Host    string
	Port    int
	From    string
	To      []string
	Timeout time.Duration
}

// SMTPNotifier mails messages as plain text.
type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.From == "" {
		return nil, errors.Newf("smtp sender must be set")
	}
	if len(cfg.To) == 0 {
		return nil, errors.Newf("smtp recipients must be set")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	return &SMTPNotifier{cfg: cfg}, nil
}

func (s *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	if err := s.send(ctx, msg); err != nil {
		return &NotificationError{Channel: "smtp", Err: err}
	}
	return nil
}

func (s *SMTPNotifier) send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	d := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return errors.CombineErrors(err, conn.Close())
		}
	}
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return errors.CombineErrors(err, conn.Close())
	}
	defer func() { _ = c.Close() }()

	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	for _, to := range s.cfg.To {
		if err := c.Rcpt(to); err != nil {
			return errors.Wrapf(err, "recipient %s", to)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(s.format(msg))); err != nil {
		return errors.CombineErrors(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *SMTPNotifier) format(msg Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\n", s.cfg.From)
	fmt.Fprintf(&sb, "To: %s\n", strings.Join(s.cfg.To, ", "))
	fmt.Fprintf(&sb, "Subject: %s\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	sb.WriteString("MIME-Version: 1.0\n")
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\n\n")
	sb.WriteString(msg.Body)
	return sb.String()
}
