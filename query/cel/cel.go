// Package cel implements the jq node's query language using CEL
// (Common Expression Language). A Query is compiled once per configured
// jq node and evaluated once per request against that node's input ports.
package cel

import (
	"fmt"
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"

	"github.com/dkengine/datakit/errkind"
	"github.com/dkengine/datakit/value"
)

// Query is a compiled CEL program bound to a fixed set of named input
// variables — the jq node's input port names.
type Query struct {
	expr string
	prg  celgo.Program
}

// Compile builds the CEL environment for varNames, then parses, type-checks,
// and plans expr against it. varNames are the jq node's input port
// identifiers (already sanitized before reaching here).
func Compile(expr string, varNames []string) (*Query, error) {
	if expr == "" {
		return nil, errkind.Configurationf("cel: query expression cannot be empty")
	}

	opts := make([]celgo.EnvOption, 0, len(varNames))
	for _, name := range varNames {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	env, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, errkind.Configurationf("cel: build environment: %v", err)
	}

	ast, issues := env.Parse(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errkind.Configurationf("cel: parse %q: %v", expr, issues.Err())
	}
	ast, issues = env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, errkind.Configurationf("cel: type-check %q: %v", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errkind.Configurationf("cel: plan %q: %v", expr, err)
	}

	return &Query{expr: expr, prg: prg}, nil
}

// Eval runs the compiled query against a per-request activation built from
// inputs, converting the evaluated result back into a value.V that becomes
// the node's output.
func (q *Query) Eval(inputs map[string]value.V) (value.V, error) {
	activation := make(map[string]any, len(inputs))
	for name, v := range inputs {
		activation[name] = v.ToAny()
	}

	out, _, err := q.prg.Eval(activation)
	if err != nil {
		return value.Null, errkind.Evaluationf("cel: evaluate %q: %v", q.expr, err)
	}

	result, err := value.FromAny(normalize(out))
	if err != nil {
		return value.Null, errkind.Evaluationf("cel: convert result of %q: %v", q.expr, err)
	}
	return result, nil
}

// normalize unwraps cel-go ref.Val results into plain Go values that
// value.FromAny understands, recursing into maps and slices.
func normalize(v any) any {
	if rv, ok := v.(ref.Val); ok {
		return normalize(rv.Value())
	}
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(normalize(iter.Key().Interface()))] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Int, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	default:
		return v
	}
}
