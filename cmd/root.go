package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ucdmtools/recon/cmd/compare"
	"github.com/ucdmtools/recon/cmd/extract"
	"github.com/ucdmtools/recon/cmd/run"
)

var rootCmd = &cobra.Command{
	Use:   "recon",
	Short: "Reconcile replicated extracts against the source of record",
	Long: `recon extracts tables from a replicated database and compares them, row by row and field by field,
against the canonical extracts of the source of record.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(compare.Command())
	rootCmd.AddCommand(extract.Command())
	rootCmd.AddCommand(run.Command())
}
