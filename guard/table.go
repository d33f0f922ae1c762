package guard

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mealpoint/portal/identity"
)

// Rule maps a destination prefix to the role required to enter it. Rules
// are checked in order; the first matching prefix wins.
type Rule struct {
	Prefix string        `yaml:"prefix"`
	Role   identity.Role `yaml:"role"`
}

// Table is the ordered set of guarding rules. Destinations matching no
// rule are public.
type Table struct {
	rules []Rule
}

// routesFile is the YAML layout of a route table file.
type routesFile struct {
	Routes []Rule `yaml:"routes"`
}

// NewTable builds a table from explicit rules.
func NewTable(rules []Rule) (*Table, error) {
	for _, r := range rules {
		if r.Prefix == "" || !strings.HasPrefix(r.Prefix, "/") {
			return nil, errors.Errorf("[NewTable] rule prefix %q must start with /", r.Prefix)
		}
		if !r.Role.Valid() {
			return nil, errors.Errorf("[NewTable] rule %q has unknown role %q", r.Prefix, r.Role)
		}
	}
	return &Table{rules: rules}, nil
}

// DefaultTable guards the two dashboards and their subtrees.
func DefaultTable() *Table {
	return &Table{rules: []Rule{
		{Prefix: identity.AdminHome, Role: identity.RoleAdmin},
		{Prefix: "/admin/", Role: identity.RoleAdmin},
		{Prefix: identity.VendorHome, Role: identity.RoleVendor},
		{Prefix: "/vendor/", Role: identity.RoleVendor},
	}}
}

// LoadTable reads a route table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[LoadTable] read file")
	}

	var file routesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "[LoadTable] parse yaml")
	}

	return NewTable(file.Routes)
}

// RequiredRole returns the role guarding a destination and whether the
// destination is guarded at all.
func (t *Table) RequiredRole(destination string) (identity.Role, bool) {
	for _, r := range t.rules {
		if destination == strings.TrimSuffix(r.Prefix, "/") || strings.HasPrefix(destination, r.Prefix) {
			return r.Role, true
		}
	}
	return "", false
}
