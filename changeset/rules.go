// Package changeset turns pairs of audit snapshots into human-readable diffs.
//
// Foreign keys are resolved against a ReferenceSet loaded once per query
// batch, so historical entries always render with current labels, or with a
// placeholder when the referenced row is gone.
package changeset

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blogem/licitacoes/models"
)

//go:embed field_rules.yaml
var defaultRulesYAML []byte

// ForeignKey maps a *_id field to the reference kind and rendered name field
type ForeignKey struct {
	Kind models.ReferenceKind `yaml:"kind"`
	Name string               `yaml:"name"`
}

// Rules is the explicit field configuration the differ applies
type Rules struct {
	OptionalText []string              `yaml:"optional_text"`
	Excluded     []string              `yaml:"excluded"`
	Priority     []string              `yaml:"priority"`
	ForeignKeys  map[string]ForeignKey `yaml:"foreign_keys"`

	optional map[string]bool
	excluded map[string]bool
	rank     map[string]int
}

// DefaultRules returns the embedded rule set
func DefaultRules() *Rules {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("changeset: embedded field rules are invalid: %v", err))
	}
	return rules
}

// LoadRules reads rules from path, or returns the embedded defaults when path is empty
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule document
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse field rules: %w", err)
	}

	for field, fk := range rules.ForeignKeys {
		if !strings.HasSuffix(field, "_id") {
			return nil, fmt.Errorf("foreign key field %q must end in _id", field)
		}
		if !fk.Kind.Valid() {
			return nil, fmt.Errorf("foreign key field %q has unknown kind %q", field, fk.Kind)
		}
		if fk.Name == "" {
			return nil, fmt.Errorf("foreign key field %q has no name field", field)
		}
	}

	rules.index()
	return &rules, nil
}

func (r *Rules) index() {
	r.optional = make(map[string]bool, len(r.OptionalText))
	for _, f := range r.OptionalText {
		r.optional[f] = true
	}
	r.excluded = make(map[string]bool, len(r.Excluded))
	for _, f := range r.Excluded {
		r.excluded[f] = true
	}
	r.rank = make(map[string]int, len(r.Priority))
	for i, f := range r.Priority {
		if _, dup := r.rank[f]; !dup {
			r.rank[f] = i
		}
	}
}

// IsOptionalText reports whether null, missing and "" are equivalent for field
func (r *Rules) IsOptionalText(field string) bool { return r.optional[field] }

// IsExcluded reports whether field is never rendered
func (r *Rules) IsExcluded(field string) bool { return r.excluded[field] }

// ForeignKey returns the mapping for a configured *_id field
func (r *Rules) ForeignKey(field string) (ForeignKey, bool) {
	fk, ok := r.ForeignKeys[field]
	return fk, ok
}

func (r *Rules) priority(field string) (int, bool) {
	i, ok := r.rank[field]
	return i, ok
}
