package notify

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/require"
)

func TestFileMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u_results.txt")
	require.NoError(t, os.WriteFile(path, []byte("Comparing on person\n"), 0644))

	msg, err := FileMessage(path, "")
	require.NoError(t, err)
	require.Equal(t, Message{Subject: "CSV Validation for u_results.txt", Body: "Comparing on person\n"}, msg)

	msg, err = FileMessage(path, "Number of courses by term")
	require.NoError(t, err)
	require.Equal(t, "Number of courses by term", msg.Subject)

	_, err = FileMessage(filepath.Join(t.TempDir(), "missing.txt"), "")
	require.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	for _, tc := range []struct {
		desc          string
		env           map[string]string
		expected      Notifier
		expectedError string
	}{
		{
			desc:          "nothing configured",
			env:           map[string]string{},
			expectedError: "no notifier configured: set SLACK_TOKEN or SMTP_HOST",
		},
		{
			desc: "smtp",
			env: map[string]string{
				"SMTP_HOST": "mail.example.edu",
				"SMTP_PORT": "2525",
				"SMTP_FROM": "recon@example.edu",
				"SMTP_TO":   "a@example.edu, b@example.edu",
			},
			expected: &SMTPNotifier{cfg: SMTPConfig{
				Host:    "mail.example.edu",
				Port:    2525,
				From:    "recon@example.edu",
				To:      []string{"a@example.edu", "b@example.edu"},
				Timeout: 5 * time.Second,
			}},
		},
		{
			desc:          "smtp bad port",
			env:           map[string]string{"SMTP_HOST": "h", "SMTP_PORT": "smtp"},
			expectedError: `invalid SMTP_PORT "smtp": strconv.Atoi: parsing "smtp": invalid syntax`,
		},
		{
			desc:          "smtp without recipients",
			env:           map[string]string{"SMTP_HOST": "h", "SMTP_FROM": "a@b"},
			expectedError: "smtp recipients must be set",
		},
		{
			desc:          "slack without channel",
			env:           map[string]string{"SLACK_TOKEN": "xoxb"},
			expectedError: "SLACK_CHANNEL must be set with SLACK_TOKEN",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			n, err := FromEnv(func(key string) string { return tc.env[key] })
			if tc.expectedError != "" {
				require.EqualError(t, err, tc.expectedError)
				require.True(t, n == nil, "expected an untyped nil notifier, got %#v", n)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, n)
		})
	}

	n, err := FromEnv(func(key string) string {
		return map[string]string{"SLACK_TOKEN": "xoxb", "SLACK_CHANNEL": "#recon", "SMTP_HOST": "h"}[key]
	})
	require.NoError(t, err)
	require.IsType(t, &SlackNotifier{}, n)
}

// fakeSMTPServer accepts a single message and sends its DATA to the
// returned channel.
func fakeSMTPServer(t *testing.T) (string, int, <-chan string) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	dataCh := make(chan string, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0]); cmd {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 localhost")
			case "MAIL", "RCPT":
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				b, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				dataCh <- string(b)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 unknown command %s", cmd)
			}
		}
	}()
	addr := l.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, dataCh
}

func TestSMTPNotifier(t *testing.T) {
	host, port, dataCh := fakeSMTPServer(t)
	n, err := NewSMTPNotifier(SMTPConfig{
		Host: host,
		Port: port,
		From: "recon@example.edu",
		To:   []string{"a@example.edu", "b@example.edu"},
	})
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), Message{
		Subject: "CSV Validation for u_results.txt",
		Body:    "Comparing on person\nreplicated rows: 1, canonical rows: 1\n",
	}))
	require.Equal(t, `From: recon@example.edu
To: a@example.edu, b@example.edu
Subject: CSV Validation for u_results.txt
MIME-Version: 1.0
Content-Type: text/plain; charset="utf-8"

Comparing on person
replicated rows: 1, canonical rows: 1
`, <-dataCh)
}

func TestSMTPNotifierUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	n, err := NewSMTPNotifier(SMTPConfig{
		Host:    addr.IP.String(),
		Port:    addr.Port,
		From:    "recon@example.edu",
		To:      []string{"a@example.edu"},
		Timeout: time.Second,
	})
	require.NoError(t, err)
	err = n.Notify(context.Background(), Message{Subject: "s", Body: "b"})
	var notifyErr *NotificationError
	require.True(t, errors.As(err, &notifyErr))
	require.Equal(t, "smtp", notifyErr.Channel)
}

func TestSlackNotifier(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"path":    r.URL.Path,
			"channel": r.Form.Get("channel"),
			"text":    r.Form.Get("text"),
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("channel") == "#missing" {
			_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1503435956.000247"}`))
	}))
	defer srv.Close()

	n := NewSlackNotifier("xoxb-test", "#recon", slack.OptionAPIURL(srv.URL+"/"))
	require.NoError(t, n.Notify(context.Background(), Message{Subject: "Number of courses by term", Body: "term_id,count\n1,2"}))
	require.Equal(t, map[string]string{
		"path":    "/chat.postMessage",
		"channel": "#recon",
		"text":    "*Number of courses by term*\n```\nterm_id,count\n1,2\n```",
	}, form)

	n = NewSlackNotifier("xoxb-test", "#missing", slack.OptionAPIURL(srv.URL+"/"))
	err := n.Notify(context.Background(), Message{Subject: "s", Body: "b"})
	require.EqualError(t, err, "error sending slack notification: channel_not_found")
}
