package extract

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ucdmtools/recon/cmd/internal/cmdutil"
	"github.com/ucdmtools/recon/extract"
	"github.com/ucdmtools/recon/notify"
	"github.com/ucdmtools/recon/registry"
)

type Config struct {
	RowsPerSecond float64
}

func Command() *cobra.Command {
	var cfg Config
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract replicated tables to CSV files.",
		Long: `Extract runs each selected table's query against the database named by DSN_<dsn> and writes the
result, with a header row, to the replicated file of the table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}
			cmdutil.RunMetricsServer(logger)
			env, err := cmdutil.LoadEnv()
			if err != nil {
				return err
			}
			reg, err := cmdutil.LoadRegistry()
			if err != nil {
				return err
			}
			specs, err := cmdutil.SelectTables(reg, env)
			if err != nil {
				return err
			}
			return Run(cmd.Context(), logger, env, specs, cfg, cmdutil.Notification())
		},
	}
	RegisterFlags(cmd, &cfg)
	cmdutil.RegisterEnvFlags(cmd)
	cmdutil.RegisterLoggerFlags(cmd)
	cmdutil.RegisterMetricsFlags(cmd)
	cmdutil.RegisterNameFilterFlags(cmd)
	cmdutil.RegisterNotifyFlags(cmd)
	cmdutil.RegisterStoreFlags(cmd)
	return cmd
}

func RegisterFlags(cmd *cobra.Command, cfg *Config) {
	cmd.PersistentFlags().Float64Var(
		&cfg.RowsPerSecond,
		"rows-per-second",
		0,
		"if set, maximum rows read per second when falling back to a regular query",
	)
}

// Run extracts specs, optionally sending each extracted file. Every table is
// attempted; the error lists how many failed.
func Run(
	ctx context.Context,
	logger zerolog.Logger,
	env *viper.Viper,
	specs []registry.TableSpec,
	cfg Config,
	notifyCfg cmdutil.NotifyConfig,
) error {
	var notifier notify.Notifier
	if notifyCfg.Enabled {
		var err error
		if notifier, err = notify.FromEnv(env.GetString); err != nil {
			return err
		}
	}
	store, err := cmdutil.OpenStore(ctx, logger)
	if err != nil {
		return err
	}
	extractCfg := extract.DefaultConfig()
	extractCfg.ReplicatedPattern = cmdutil.ReplicatedPattern()
	extractCfg.RowsPerSecond = cfg.RowsPerSecond

	results, errs := extract.ExtractAll(ctx, logger, extract.EnvConnector(env.GetString), store, specs, extractCfg)
	failed := 0
	for i, res := range results {
		if errs[i] != nil {
			failed++
			continue
		}
		if notifier == nil {
			continue
		}
		subject := notifyCfg.Subject
		if subject == "" {
			subject = specs[i].QueryName
		}
		if err := sendResource(ctx, logger, notifier, res, subject); err != nil {
			return err
		}
	}
	if failed > 0 {
		return errors.Newf("%d of %d tables failed to extract", failed, len(specs))
	}
	return nil
}

func sendResource(
	ctx context.Context, logger zerolog.Logger, notifier notify.Notifier, res extract.Result, subject string,
) error {
	rc, err := res.Resource.Reader(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	msg, err := notify.ReaderMessage(rc, res.Resource.Key(), subject)
	if err != nil {
		return err
	}
	logger.Info().Str("file", res.Resource.URL()).Msgf("sending extract")
	return notifier.Notify(ctx, msg)
}
