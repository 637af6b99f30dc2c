package silo

import (
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprFilter is a QueryNode whose predicate is authored as a boolean
// expression over component names rather than built from Query.And/Or/Not
// calls, for tools that need to accept a query string at runtime (a CLI
// flag, a config file, a REPL) rather than compile one in.
//
// Within the expression, each component type's bare name (e.g. "Position")
// evaluates to true if the candidate archetype carries that component.
// Example: "Position and (Velocity or Gravity) and not Frozen".
type ExprFilter struct {
	source  string
	program *vm.Program
	named   map[string]Component
}

// CompileFilter compiles source against the given named components, which
// must cover every identifier the expression references. Compilation
// happens once up front so Evaluate, called once per archetype per Tick,
// never re-parses the expression.
func CompileFilter(source string, named map[string]Component) (*ExprFilter, error) {
	env := make(map[string]any, len(named))
	for name := range named {
		env[name] = false
	}
	program, err := expr.Compile(source, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, ConfigurationError{Reason: "invalid filter expression: " + err.Error()}
	}
	return &ExprFilter{source: source, program: program, named: named}, nil
}

// Evaluate implements QueryNode by running the compiled expression against
// archetype's component membership.
func (f *ExprFilter) Evaluate(archetype Archetype, storage Storage) bool {
	env := make(map[string]any, len(f.named))
	for name, c := range f.named {
		env[name] = archetype.Table().Contains(c)
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false
	}
	result, _ := out.(bool)
	return result
}

// String returns the filter's original source, for logging.
func (f *ExprFilter) String() string {
	return f.source
}

// namedComponentsFromSignature builds the name->Component map CompileFilter
// needs from an AccessSignature's reads and writes, deriving each name the
// same way Entity.ComponentsAsString does: the bare, unqualified type name.
func namedComponentsFromSignature(access AccessSignature) map[string]Component {
	named := make(map[string]Component)
	for _, c := range append(append([]Component{}, access.Reads...), access.Writes...) {
		named[componentName(c)] = c
	}
	return named
}

// componentName derives the same bare, unqualified type name
// Entity.ComponentsAsString uses: the generic AccessibleComponent[T]'s
// reflect string is "pkg.AccessibleComponent[pkg.T]", so the last segment
// after a dot split still carries a trailing "]" that must be trimmed.
func componentName(c Component) string {
	t := reflect.TypeOf(c)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.String()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "]")
}
