package changeset

import (
	"sort"
	"strings"

	"github.com/blogem/licitacoes/models"
)

// Change is one changed field with its rendered values on each side
type Change struct {
	Name      string       `json:"field"`
	Before    models.Value `json:"before"`
	After     models.Value `json:"after"`
	HasBefore bool         `json:"-"`
	HasAfter  bool         `json:"-"`
}

// Summary formats the change as "field: before -> after"
func (c Change) Summary() string {
	return c.Name + ": " + display(c.Before, c.HasBefore) + " -> " + display(c.After, c.HasAfter)
}

func display(v models.Value, present bool) string {
	if !present || v.IsNull() {
		return "(empty)"
	}
	return v.Display()
}

// Result is the outcome of comparing two snapshots. Before and After hold the
// renderable fields of each side, in rendering order.
type Result struct {
	Changed []string       `json:"changed_fields"`
	Before  []models.Field `json:"before"`
	After   []models.Field `json:"after"`
	Changes []Change       `json:"changes"`
}

// IsChanged reports whether field is in the changed set
func (r Result) IsChanged(field string) bool {
	for _, name := range r.Changed {
		if name == field {
			return true
		}
	}
	return false
}

// Empty reports whether no field changed
func (r Result) Empty() bool { return len(r.Changed) == 0 }

// Summary joins the per-field summaries with "; "
func (r Result) Summary() string {
	parts := make([]string, len(r.Changes))
	for i, c := range r.Changes {
		parts[i] = c.Summary()
	}
	return strings.Join(parts, "; ")
}

// Differ compares snapshots according to a rule set
type Differ struct {
	rules *Rules
}

// NewDiffer creates a differ. Nil rules select the embedded defaults.
func NewDiffer(rules *Rules) *Differ {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Differ{rules: rules}
}

// rendered is one side of the diff after exclusions and key substitution
type rendered struct {
	order  []string
	values map[string]models.Value
	raw    map[string]models.Value // original ids behind substituted fields
}

func (d *Differ) render(s *models.Snapshot, resolver *Resolver) *rendered {
	out := &rendered{
		values: make(map[string]models.Value),
		raw:    make(map[string]models.Value),
	}
	if s == nil {
		return out
	}

	put := func(name string, v models.Value) {
		if _, ok := out.values[name]; !ok {
			out.order = append(out.order, name)
		}
		out.values[name] = v
	}

	for _, f := range s.Fields() {
		if d.rules.IsExcluded(f.Name) {
			continue
		}

		if fk, ok := d.rules.ForeignKey(f.Name); ok {
			put(fk.Name, resolver.ResolveValue(fk.Kind, f.Value))
			out.raw[fk.Name] = f.Value
			continue
		}

		// Unmapped keys render under their base name with the raw id.
		if strings.HasSuffix(f.Name, "_id") {
			name := strings.TrimSuffix(f.Name, "_id")
			put(name, f.Value)
			out.raw[name] = f.Value
			continue
		}

		// A resolved label wins over a stored copy of the same name.
		if _, resolved := out.raw[f.Name]; resolved {
			continue
		}
		put(f.Name, f.Value)
	}
	return out
}

// Diff computes the changed fields between before and after. Either side may
// be nil: with one side missing every present field counts as changed, with
// both missing the result is empty.
func (d *Differ) Diff(before, after *models.Snapshot, resolver *Resolver) Result {
	result := Result{
		Changed: []string{},
		Before:  []models.Field{},
		After:   []models.Field{},
		Changes: []Change{},
	}
	if before == nil && after == nil {
		return result
	}
	if resolver == nil {
		resolver = NewResolver(nil, nil)
	}

	b := d.render(before, resolver)
	a := d.render(after, resolver)

	union := make([]string, 0, len(b.order)+len(a.order))
	seen := make(map[string]bool, len(b.order)+len(a.order))
	for _, name := range append(append([]string{}, b.order...), a.order...) {
		if !seen[name] {
			seen[name] = true
			union = append(union, name)
		}
	}
	d.sortFields(union)

	oneSided := before == nil || after == nil
	for _, name := range union {
		bv, bok := b.values[name]
		av, aok := a.values[name]

		if bok {
			result.Before = append(result.Before, models.Field{Name: name, Value: bv})
		}
		if aok {
			result.After = append(result.After, models.Field{Name: name, Value: av})
		}

		var changed bool
		switch {
		case oneSided:
			changed = true
		case isKey(b, a, name):
			changed = !sameID(b.raw[name], a.raw[name])
		case d.rules.IsOptionalText(name):
			changed = !normalizeText(bv, bok).Equal(normalizeText(av, aok))
		default:
			changed = bok != aok || !bv.Equal(av)
		}

		if changed {
			result.Changed = append(result.Changed, name)
			result.Changes = append(result.Changes, Change{
				Name:      name,
				Before:    orNull(bv, bok),
				After:     orNull(av, aok),
				HasBefore: bok,
				HasAfter:  aok,
			})
		}
	}

	return result
}

// sortFields orders names by the priority list, keeping unlisted names in
// their original relative order after the listed ones
func (d *Differ) sortFields(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		pi, oki := d.rules.priority(names[i])
		pj, okj := d.rules.priority(names[j])
		switch {
		case oki && okj:
			return pi < pj
		case oki:
			return true
		default:
			return false
		}
	})
}

func isKey(b, a *rendered, name string) bool {
	_, bk := b.raw[name]
	_, ak := a.raw[name]
	return bk || ak
}

// sameID compares raw key values; a missing key equals null
func sameID(x, y models.Value) bool {
	xi, xok := x.Int64()
	yi, yok := y.Int64()
	if xok && yok {
		return xi == yi
	}
	return x.Equal(y)
}

// normalizeText folds missing, null and "" into null
func normalizeText(v models.Value, present bool) models.Value {
	if !present || v.IsNull() || (v.Kind == models.KindString && v.Str == "") {
		return models.Null()
	}
	return v
}

func orNull(v models.Value, present bool) models.Value {
	if !present {
		return models.Null()
	}
	return v
}
