package cmdutil

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/ucdmtools/recon/datablobstorage"
	"github.com/ucdmtools/recon/registry"
)

type storeConfig struct {
	location          string
	replicatedPattern string
}

var storeCfg = storeConfig{
	location:          ".",
	replicatedPattern: registry.DefaultReplicatedPattern,
}

func RegisterStoreFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&storeCfg.location,
		"store",
		storeCfg.location,
		"where extract files live: a local directory, s3://bucket/prefix or gs://bucket/prefix",
	)
	cmd.PersistentFlags().StringVar(
		&storeCfg.replicatedPattern,
		"replicated-file-pattern",
		storeCfg.replicatedPattern,
		"name of the extracted file for each table; {table} is replaced by the table name",
	)
}

func OpenStore(ctx context.Context, logger zerolog.Logger) (datablobstorage.Store, error) {
	return datablobstorage.Open(ctx, logger, storeCfg.location)
}

func ReplicatedPattern() string {
	return storeCfg.replicatedPattern
}
