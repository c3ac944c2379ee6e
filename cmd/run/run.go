package run

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/ucdmtools/recon/cmd/compare"
	"github.com/ucdmtools/recon/cmd/extract"
	"github.com/ucdmtools/recon/cmd/internal/cmdutil"
	"github.com/ucdmtools/recon/registry"
)

// EmailTable is extracted and sent by option 5.
const EmailTable = "number_of_courses_by_term"

const menu = `Choose an option.
    1 = Extract *all* tables from the replicated database to CSV
    2 = Extract *selected* table(s) from the replicated database to CSV
    3 = Compare *all* CSV files
    4 = Compare *selected* table(s)
    5 = Extract and send the %s table
`

func Command() *cobra.Command {
	var (
		option     int
		compareCfg compare.Config
		extractCfg extract.Config
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one of the numbered operator tasks.",
		Long: `Run performs one of the numbered tasks of the operator menu. If --option is not given, the menu is
printed and the option is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
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

			out := cmd.OutOrStdout()
			if !cmd.Flags().Changed("option") {
				if option, err = prompt(cmd.InOrStdin(), out, env.GetString(cmdutil.EnvSelectTables)); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "Running option %d\n", option)

			selectTables := func(all bool) ([]registry.TableSpec, error) {
				cmdutil.SelectAll(all)
				return cmdutil.SelectTables(reg, env)
			}
			switch option {
			case 1, 2:
				specs, err := selectTables(option == 1)
				if err != nil {
					return err
				}
				return extract.Run(ctx, logger, env, specs, extractCfg, cmdutil.Notification())
			case 3, 4:
				specs, err := selectTables(option == 3)
				if err != nil {
					return err
				}
				return compare.Run(ctx, logger, env, specs, compareCfg, cmdutil.Notification())
			case 5:
				spec, err := reg.Lookup(EmailTable)
				if err != nil {
					return err
				}
				notifyCfg := cmdutil.Notification()
				notifyCfg.Enabled = true
				return extract.Run(ctx, logger, env, []registry.TableSpec{spec}, extractCfg, notifyCfg)
			}
			return errors.Newf("%d is not currently a valid option", option)
		},
	}
	cmd.PersistentFlags().IntVarP(
		&option,
		"option",
		"o",
		0,
		"run an option by number",
	)
	compare.RegisterFlags(cmd, &compareCfg)
	extract.RegisterFlags(cmd, &extractCfg)
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

func prompt(in io.Reader, out io.Writer, selectTables string) (int, error) {
	fmt.Fprintf(out, menu, EmailTable)
	fmt.Fprintf(out, "'Selected table(s)' are: %s\n", strings.Join(strings.Split(selectTables, ","), ", "))
	var option int
	if _, err := fmt.Fscan(in, &option); err != nil {
		return 0, errors.Wrap(err, "error reading option")
	}
	return option, nil
}
