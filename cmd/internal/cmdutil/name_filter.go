package cmdutil

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ucdmtools/recon/registry"
)

type tableSelection struct {
	registryPath string
	tables       []string
	all          bool
	filter       registry.FilterConfig
}

var selection = tableSelection{
	registryPath: "tables.yaml",
	filter:       registry.DefaultFilterConfig(),
}

func RegisterNameFilterFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&selection.registryPath,
		"registry",
		selection.registryPath,
		"YAML file listing the tables which can be extracted and compared",
	)
	cmd.PersistentFlags().StringSliceVar(
		&selection.tables,
		"tables",
		nil,
		"tables to action on; defaults to $"+EnvSelectTables,
	)
	cmd.PersistentFlags().BoolVar(
		&selection.all,
		"all",
		false,
		"action on every table in the registry",
	)
	cmd.PersistentFlags().StringVar(
		&selection.filter.TableFilter,
		"table-filter",
		selection.filter.TableFilter,
		"POSIX regexp filter for tables to action on",
	)
}

func LoadRegistry() (*registry.Registry, error) {
	return registry.Load(selection.registryPath)
}

// SelectAll overrides --all.
func SelectAll(all bool) {
	selection.all = all
}

// SelectTables returns the tables chosen by --all, --tables or the
// environment, narrowed by --table-filter.
func SelectTables(reg *registry.Registry, env *viper.Viper) ([]registry.TableSpec, error) {
	var specs []registry.TableSpec
	switch {
	case selection.all:
		specs = reg.Tables
	default:
		names := selection.tables
		if len(names) == 0 {
			names = strings.Split(env.GetString(EnvSelectTables), ",")
		}
		var err error
		if specs, err = reg.Select(names); err != nil {
			return nil, err
		}
	}
	specs, err := registry.Filter(selection.filter, specs)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, errors.Newf("no tables selected")
	}
	return specs, nil
}
