package cmdutil

import (
	"github.com/spf13/cobra"
)

type NotifyConfig struct {
	Enabled bool
	Subject string
}

var notifyCfg NotifyConfig

func RegisterNotifyFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(
		&notifyCfg.Enabled,
		"notify",
		notifyCfg.Enabled,
		"send the output file by e-mail (SMTP_*) or Slack (SLACK_TOKEN, SLACK_CHANNEL)",
	)
	cmd.PersistentFlags().StringVar(
		&notifyCfg.Subject,
		"subject",
		notifyCfg.Subject,
		"subject of the notification; defaults to the table's query_name or the file name",
	)
}

func Notification() NotifyConfig {
	return notifyCfg
}
