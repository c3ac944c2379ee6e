package compare

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ucdmtools/recon/cmd/internal/cmdutil"
	"github.com/ucdmtools/recon/dataset"
	"github.com/ucdmtools/recon/notify"
	"github.com/ucdmtools/recon/reconcile"
	"github.com/ucdmtools/recon/reconcile/inconsistency"
	"github.com/ucdmtools/recon/registry"
)

type Config struct {
	NullIndex      string
	DuplicateIndex string
	Concurrency    int
}

func Command() *cobra.Command {
	var cfg Config
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare canonical extracts against replicated extracts.",
		Long: `Compare loads the canonical and replicated CSV file of each selected table, aligns rows on the
table's index column and writes mismatching fields and row count differences to the results file.`,
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
	cmdutil.RegisterProgressFlags(cmd)
	cmdutil.RegisterReporterFlags(cmd)
	cmdutil.RegisterStoreFlags(cmd)
	return cmd
}

func RegisterFlags(cmd *cobra.Command, cfg *Config) {
	cmd.PersistentFlags().StringVar(
		&cfg.NullIndex,
		"null-index",
		"skip",
		"what to do with canonical rows without a usable index value (skip, report)",
	)
	cmd.PersistentFlags().StringVar(
		&cfg.DuplicateIndex,
		"duplicate-index",
		"last",
		"which row to keep when an index value repeats within a file (last, first, reject)",
	)
	cmd.PersistentFlags().IntVar(
		&cfg.Concurrency,
		"concurrency",
		1,
		"number of tables to compare at a time",
	)
}

// Run compares specs and optionally sends the results file.
func Run(
	ctx context.Context,
	logger zerolog.Logger,
	env *viper.Viper,
	specs []registry.TableSpec,
	cfg Config,
	notifyCfg cmdutil.NotifyConfig,
) error {
	nullIndex, err := reconcile.ParseNullIndexPolicy(cfg.NullIndex)
	if err != nil {
		return err
	}
	duplicates, err := dataset.ParseDuplicatePolicy(cfg.DuplicateIndex)
	if err != nil {
		return err
	}
	var notifier notify.Notifier
	if notifyCfg.Enabled {
		if notifier, err = notify.FromEnv(env.GetString); err != nil {
			return err
		}
	}
	store, err := cmdutil.OpenStore(ctx, logger)
	if err != nil {
		return err
	}

	date := env.GetString(cmdutil.EnvDate)
	tables := make([]reconcile.Table, len(specs))
	for i, spec := range specs {
		tables[i] = reconcile.Table{
			Name:           spec.Name,
			Index:          spec.Index,
			CanonicalFile:  spec.CanonicalFileName(date),
			ReplicatedFile: spec.ReplicatedFileName(cmdutil.ReplicatedPattern()),
		}
	}
	opts := []reconcile.Opt{
		reconcile.WithNullIndexPolicy(nullIndex),
		reconcile.WithDuplicatePolicy(duplicates),
		reconcile.WithConcurrency(cfg.Concurrency),
	}
	bars := cmdutil.NewProgressBars()
	if bars != nil {
		opts = append(opts, reconcile.WithProgress(bars.Tracker))
	}

	var results []reconcile.TableResult
	if err := cmdutil.WithReporter(logger, func(reporter inconsistency.Reporter) error {
		var err error
		results, err = reconcile.Reconcile(ctx, store, tables, reporter, logger, opts...)
		if bars != nil {
			bars.Wait()
		}
		return err
	}); err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		logger.Info().
			Str("table", res.Table).
			Bool("compared", res.Compared).
			Int("field_mismatches", res.Stats.FieldMismatches).
			Int("field_errors", res.Stats.FieldErrors).
			Msgf("table comparison complete")
	}
	if failed > 0 {
		logger.Warn().Int("failed", failed).Msgf("some tables could not be compared, see %s", cmdutil.ErrorsFile())
	}

	if notifier != nil {
		msg, err := notify.FileMessage(cmdutil.ResultsFile(), notifyCfg.Subject)
		if err != nil {
			return err
		}
		logger.Info().Str("file", cmdutil.ResultsFile()).Msgf("sending results")
		return notifier.Notify(ctx, msg)
	}
	return nil
}
