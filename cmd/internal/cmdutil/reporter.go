package cmdutil

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/ucdmtools/recon/reconcile/inconsistency"
)

type reporterConfig struct {
	resultsFile      string
	errorsFile       string
	logDiscrepancies bool
}

var reporterCfg = reporterConfig{
	resultsFile: "u_results.txt",
	errorsFile:  "u_errors.txt",
}

func RegisterReporterFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&reporterCfg.resultsFile,
		"results-file",
		reporterCfg.resultsFile,
		"file mismatches and row count summaries are written to; truncated on start",
	)
	cmd.PersistentFlags().StringVar(
		&reporterCfg.errorsFile,
		"errors-file",
		reporterCfg.errorsFile,
		"file comparison errors are written to; truncated on start",
	)
	cmd.PersistentFlags().BoolVar(
		&reporterCfg.logDiscrepancies,
		"log-discrepancies",
		false,
		"also log every discrepancy to the console",
	)
}

func ResultsFile() string {
	return reporterCfg.resultsFile
}

func ErrorsFile() string {
	return reporterCfg.errorsFile
}

// OpenReporter opens the results and errors files. The caller must Close
// the returned reporter.
func OpenReporter(logger zerolog.Logger) (inconsistency.Reporter, error) {
	fileReporter, err := inconsistency.OpenFileReporter(reporterCfg.resultsFile, reporterCfg.errorsFile)
	if err != nil {
		return nil, err
	}
	reporter := inconsistency.CombinedReporter{}
	reporter.Reporters = append(reporter.Reporters, fileReporter)
	if reporterCfg.logDiscrepancies {
		reporter.Reporters = append(reporter.Reporters, inconsistency.LogReporter{Logger: logger})
	}
	return reporter, nil
}

// WithReporter opens the report sinks for fn and closes them when fn
// returns or panics.
func WithReporter(logger zerolog.Logger, fn func(inconsistency.Reporter) error) (retErr error) {
	reporter, err := OpenReporter(logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := reporter.Close(); closeErr != nil {
			retErr = errors.CombineErrors(retErr, errors.Wrap(closeErr, "error writing results"))
		}
	}()
	return fn(reporter)
}
