// Package registry holds the tables known to a reconciliation run: how to
// extract them, how they are indexed, and where their files live.
package registry

import (
	"os"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// DefaultReplicatedPattern names the extract written for each table.
const DefaultReplicatedPattern = "unizin_{table}.csv"

var ErrUnknownTable = errors.New("unknown table")

type TableSpec struct {
	Name  string `yaml:"name"`
	Index string `yaml:"index"`
	// Query extracts the replicated dataset. Tables without a query can be
	// compared but not extracted.
	Query    string `yaml:"query,omitempty"`
	Prequery string `yaml:"prequery,omitempty"`
	// DSN selects the DSN_<dsn> environment variable to connect with.
	DSN string `yaml:"dsn,omitempty"`
	// CanonicalFile may contain {table} and {date} placeholders.
	CanonicalFile string `yaml:"canonical_file"`
	QueryName     string `yaml:"query_name,omitempty"`
}

// CanonicalFileName expands the canonical file template for date.
func (s TableSpec) CanonicalFileName(date string) string {
	return expand(s.CanonicalFile, s.Name, date)
}

// ReplicatedFileName expands pattern for the table.
func (s TableSpec) ReplicatedFileName(pattern string) string {
	if pattern == "" {
		pattern = DefaultReplicatedPattern
	}
	return expand(pattern, s.Name, "")
}

func expand(tmpl string, table string, date string) string {
	return strings.NewReplacer("{table}", table, "{date}", date).Replace(tmpl)
}

type Registry struct {
	Tables []TableSpec `yaml:"tables"`

	byName map[string]int
}

// Load reads and validates the registry at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading registry %s", path)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing registry %s", path)
	}
	return r, nil
}

func Parse(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	r.byName = make(map[string]int, len(r.Tables))
	for i, t := range r.Tables {
		switch {
		case t.Name == "":
			return nil, errors.Newf("table %d has no name", i+1)
		case t.Index == "":
			return nil, errors.Newf("table %s has no index", t.Name)
		case t.CanonicalFile == "":
			return nil, errors.Newf("table %s has no canonical_file", t.Name)
		}
		if _, ok := r.byName[t.Name]; ok {
			return nil, errors.Newf("table %s is defined more than once", t.Name)
		}
		r.byName[t.Name] = i
	}
	return &r, nil
}

func (r *Registry) Lookup(name string) (TableSpec, error) {
	idx, ok := r.byName[name]
	if !ok {
		return TableSpec{}, errors.Wrapf(ErrUnknownTable, "%s", name)
	}
	return r.Tables[idx], nil
}

// Select returns the named tables in registry order. Every name must exist.
func (r *Registry) Select(names []string) ([]TableSpec, error) {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, err := r.Lookup(n); err != nil {
			return nil, err
		}
		want[n] = struct{}{}
	}
	ret := make([]TableSpec, 0, len(want))
	for _, t := range r.Tables {
		if _, ok := want[t.Name]; ok {
			ret = append(ret, t)
		}
	}
	return ret, nil
}

const DefaultFilterString = ".*"

type FilterConfig struct {
	TableFilter string
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{TableFilter: DefaultFilterString}
}

// Filter keeps the tables whose name matches the POSIX regexp in cfg.
func Filter(cfg FilterConfig, tables []TableSpec) ([]TableSpec, error) {
	if cfg.TableFilter == DefaultFilterString || cfg.TableFilter == "" {
		return tables, nil
	}
	re, err := regexp.CompilePOSIX(cfg.TableFilter)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid table filter %q", cfg.TableFilter)
	}
	ret := make([]TableSpec, 0, len(tables))
	for _, t := range tables {
		if re.MatchString(t.Name) {
			ret = append(ret, t)
		}
	}
	return ret, nil
}
