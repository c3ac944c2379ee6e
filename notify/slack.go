package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

type SlackNotifier struct {
	api     *slack.Client
	channel string
}

func NewSlackNotifier(token string, channel string, options ...slack.Option) *SlackNotifier {
	return &SlackNotifier{
		api:     slack.New(token, options...),
		channel: channel,
	}
}

func (s *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	if _, _, err := s.api.PostMessageContext(
		ctx,
		s.channel,
		slack.MsgOptionText(fmt.Sprintf("*%s*\n```\n%s\n```", msg.Subject, msg.Body), false),
	); err != nil {
		return &NotificationError{Channel: "slack", Err: err}
	}
	return nil
}
