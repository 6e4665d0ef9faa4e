package cypher

import (
	"fmt"
	"strings"
)

// FilterOperator is a comparison operator on a filter leaf.
type FilterOperator string

const (
	OpEq        FilterOperator = "eq"
	OpNeq       FilterOperator = "neq"
	OpGt        FilterOperator = "gt"
	OpGte       FilterOperator = "gte"
	OpLt        FilterOperator = "lt"
	OpLte       FilterOperator = "lte"
	OpContains  FilterOperator = "contains"
	OpIn        FilterOperator = "in"
	OpBetween   FilterOperator = "between"
	OpIsNull    FilterOperator = "is_null"
	OpIsNotNull FilterOperator = "is_not_null"
	OpBefore    FilterOperator = "before"
	OpAfter     FilterOperator = "after"
	OpOn        FilterOperator = "on"
)

// comparisonOps maps operators that render as a plain binary comparison.
var comparisonOps = map[FilterOperator]string{
	OpEq:     "=",
	OpOn:     "=",
	OpNeq:    "<>",
	OpGt:     ">",
	OpAfter:  ">",
	OpGte:    ">=",
	OpLt:     "<",
	OpBefore: "<",
	OpLte:    "<=",
}

// FilterCondition is a single leaf predicate against one node property.
type FilterCondition struct {
	Property    string         `json:"property"`
	Operator    FilterOperator `json:"operator"`
	Value       any            `json:"value,omitempty"`
	Fuzzy       bool           `json:"fuzzy,omitempty"`
	MaxDistance int            `json:"maxDistance,omitempty"`
}

// FilterGroup is a boolean combination of leaves and nested groups. The
// group's operator applies uniformly to every direct item.
type FilterGroup struct {
	Operator   string            `json:"operator"` // AND or OR
	Conditions []FilterCondition `json:"conditions,omitempty"`
	Groups     []*FilterGroup    `json:"groups,omitempty"`
}

// CompiledFilter is a rendered WHERE-clause body plus its bound parameters.
// It is stateless and discarded after one execution.
type CompiledFilter struct {
	Clause string
	Params map[string]any
	// UsesDistance is true when at least one fuzzy leaf was compiled against
	// the string-distance function, meaning a containment fallback exists.
	UsesDistance bool
}

// InvalidFilterError reports a filter leaf or group that cannot be compiled.
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	if e.Field == "" {
		return "invalid filter: " + e.Reason
	}
	return fmt.Sprintf("invalid filter on %q: %s", e.Field, e.Reason)
}

const defaultMaxDistance = 2

// CompileFilter compiles a filter tree into a parameterized clause scoped to
// the given node alias. Fuzzy leaves are compiled optimistically against the
// backend's string-distance function; see CompileFilterFallback.
func CompileFilter(group *FilterGroup, alias string) (*CompiledFilter, error) {
	return compileFilter(group, alias, false)
}

// CompileFilterFallback compiles the same tree with fuzzy leaves rendered as
// case-insensitive containment, for backends without the distance function.
func CompileFilterFallback(group *FilterGroup, alias string) (*CompiledFilter, error) {
	return compileFilter(group, alias, true)
}

func compileFilter(group *FilterGroup, alias string, fallback bool) (*CompiledFilter, error) {
	c := &filterCompiler{
		alias:    alias,
		params:   make(map[string]any),
		fallback: fallback,
	}
	clause, err := c.group(group)
	if err != nil {
		return nil, err
	}
	return &CompiledFilter{Clause: clause, Params: c.params, UsesDistance: c.usesDistance}, nil
}

// filterCompiler carries the monotonic parameter counter across the whole
// tree so nested groups never reuse a name.
type filterCompiler struct {
	alias        string
	params       map[string]any
	n            int
	fallback     bool
	usesDistance bool
}

func (c *filterCompiler) bind(v any) string {
	name := fmt.Sprintf("p%d", c.n)
	c.n++
	c.params[name] = v
	return name
}

func (c *filterCompiler) group(g *FilterGroup) (string, error) {
	if g == nil {
		return "", nil
	}

	op := strings.ToUpper(strings.TrimSpace(g.Operator))
	switch op {
	case "AND", "OR":
	case "":
		op = "AND"
	default:
		return "", &InvalidFilterError{Reason: fmt.Sprintf("unknown group operator %q", g.Operator)}
	}

	var parts []string
	for i := range g.Conditions {
		rendered, err := c.condition(&g.Conditions[i])
		if err != nil {
			return "", err
		}
		parts = append(parts, rendered)
	}
	for _, sub := range g.Groups {
		rendered, err := c.group(sub)
		if err != nil {
			return "", err
		}
		if rendered != "" {
			parts = append(parts, "("+rendered+")")
		}
	}

	return strings.Join(parts, " "+op+" "), nil
}

func (c *filterCompiler) condition(f *FilterCondition) (string, error) {
	if f.Property == "" {
		return "", &InvalidFilterError{Reason: "condition is missing a property"}
	}
	prop := EscapeIdentifier(c.alias) + "." + EscapeIdentifier(f.Property)

	if f.Fuzzy {
		return c.fuzzy(prop, f)
	}

	if op, ok := comparisonOps[f.Operator]; ok {
		return fmt.Sprintf("%s %s $%s", prop, op, c.bind(f.Value)), nil
	}

	switch f.Operator {
	case OpContains:
		return fmt.Sprintf("toLower(toString(%s)) CONTAINS toLower($%s)", prop, c.bind(f.Value)), nil
	case OpIn:
		return fmt.Sprintf("%s IN $%s", prop, c.bind(f.Value)), nil
	case OpBetween:
		pair, ok := f.Value.([]any)
		if !ok || len(pair) != 2 {
			return "", &InvalidFilterError{Field: f.Property, Reason: "between requires a two-element value"}
		}
		lo := c.bind(pair[0])
		hi := c.bind(pair[1])
		return fmt.Sprintf("(%s >= $%s AND %s <= $%s)", prop, lo, prop, hi), nil
	case OpIsNull:
		return prop + " IS NULL", nil
	case OpIsNotNull:
		return prop + " IS NOT NULL", nil
	default:
		return "", &InvalidFilterError{Field: f.Property, Reason: fmt.Sprintf("unknown operator %q", f.Operator)}
	}
}

func (c *filterCompiler) fuzzy(prop string, f *FilterCondition) (string, error) {
	if c.fallback {
		return fmt.Sprintf("toLower(toString(%s)) CONTAINS toLower($%s)", prop, c.bind(f.Value)), nil
	}
	max := f.MaxDistance
	if max <= 0 {
		max = defaultMaxDistance
	}
	val := c.bind(f.Value)
	dist := c.bind(max)
	c.usesDistance = true
	return fmt.Sprintf("apoc.text.distance(toLower(toString(%s)), toLower($%s)) <= $%s", prop, val, dist), nil
}

// EscapeIdentifier quotes a name for use in identifier position, doubling any
// embedded backticks. Values never pass through here; they are always bound
// as parameters.
func EscapeIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
