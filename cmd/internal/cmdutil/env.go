package cmdutil

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type envConfig struct {
	envFile string
}

var envCfg = envConfig{envFile: ".env"}

func RegisterEnvFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&envCfg.envFile,
		"env-file",
		envCfg.envFile,
		"file of KEY=value lines loaded into the environment if it exists",
	)
}

const (
	// EnvDate fills {date} in canonical file names.
	EnvDate = "SIS_DATE"
	// EnvSelectTables lists the tables used when none are named.
	EnvSelectTables = "SELECT_TABLES"

	defaultSelectTables = "academic_term"
)

// LoadEnv loads the env file, without overriding variables that are already
// set, and returns a viper instance reading the environment.
func LoadEnv() (*viper.Viper, error) {
	if envCfg.envFile != "" {
		if err := godotenv.Load(envCfg.envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "error loading %s", envCfg.envFile)
		}
	}
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(EnvSelectTables, defaultSelectTables)
	return v, nil
}
