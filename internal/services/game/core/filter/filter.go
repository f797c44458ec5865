// Package filter turns AIP-160 filter expressions over action history into
// parameterized SQL conditions.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// field describes one filterable action attribute.
type field struct {
	column string
	typ    *expr.Type
}

// actionFields maps filter identifiers to their action column.
var actionFields = map[string]field{
	"player_id":    {column: "player_id", typ: filtering.TypeString},
	"action_type":  {column: "action_type", typ: filtering.TypeString},
	"card_id":      {column: "card_id", typ: filtering.TypeString},
	"source_zone":  {column: "source_zone", typ: filtering.TypeString},
	"target_zone":  {column: "target_zone", typ: filtering.TypeString},
	"from_version": {column: "from_version", typ: filtering.TypeInt},
	"to_version":   {column: "to_version", typ: filtering.TypeInt},
	"seq":          {column: "seq", typ: filtering.TypeInt},
	"ts":           {column: "created_at", typ: filtering.TypeTimestamp},
}

// comparisons maps checked function names to SQL operators.
var comparisons = map[string]string{
	filtering.FunctionEquals:        "=",
	filtering.FunctionNotEquals:     "!=",
	filtering.FunctionLessThan:      "<",
	filtering.FunctionLessEquals:    "<=",
	filtering.FunctionGreaterThan:   ">",
	filtering.FunctionGreaterEquals: ">=",
}

// mirrored flips an operator for "value op field" expressions.
var mirrored = map[string]string{
	"=":  "=",
	"!=": "!=",
	"<":  ">",
	"<=": ">=",
	">":  "<",
	">=": "<=",
}

// ActionDeclarations returns the declarations for action history filters.
func ActionDeclarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, f := range actionFields {
		opts = append(opts, filtering.DeclareIdent(name, f.typ))
	}
	return filtering.NewDeclarations(opts...)
}

// SQLCondition is a WHERE clause fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// ParseActionFilter parses and type-checks raw, then translates it. A blank
// filter yields an empty condition.
func ParseActionFilter(raw string) (SQLCondition, error) {
	if strings.TrimSpace(raw) == "" {
		return SQLCondition{}, nil
	}
	decls, err := ActionDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(raw, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}
	if parsed.CheckedExpr == nil {
		return SQLCondition{}, nil
	}
	return translate(parsed.CheckedExpr.GetExpr())
}

func translate(e *expr.Expr) (SQLCondition, error) {
	call := e.GetCallExpr()
	if call == nil {
		return SQLCondition{}, fmt.Errorf("unsupported expression %T", e.GetExprKind())
	}
	switch call.GetFunction() {
	case filtering.FunctionAnd, "_&&_":
		return joinLogical("AND", call.GetArgs())
	case filtering.FunctionOr, "_||_":
		return joinLogical("OR", call.GetArgs())
	case filtering.FunctionNot:
		if len(call.GetArgs()) != 1 {
			return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translate(call.GetArgs()[0])
		if err != nil {
			return SQLCondition{}, err
		}
		return SQLCondition{Clause: "(NOT " + inner.Clause + ")", Params: inner.Params}, nil
	}
	op, ok := comparisons[call.GetFunction()]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.GetFunction())
	}
	return compare(op, call.GetArgs())
}

func joinLogical(op string, args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}
	left, err := translate(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	right, err := translate(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	params := make([]any, 0, len(left.Params)+len(right.Params))
	params = append(append(params, left.Params...), right.Params...)
	return SQLCondition{
		Clause: "(" + left.Clause + " " + op + " " + right.Clause + ")",
		Params: params,
	}, nil
}

func compare(op string, args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	ident, operand := args[0], args[1]
	if ident.GetIdentExpr() == nil && operand.GetIdentExpr() != nil {
		ident, operand = operand, ident
		op = mirrored[op]
	}
	name := ident.GetIdentExpr().GetName()
	if name == "" {
		return SQLCondition{}, fmt.Errorf("comparison requires a field")
	}
	f, ok := actionFields[name]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", name)
	}
	value, err := literal(operand)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("field %s: %w", name, err)
	}
	return SQLCondition{Clause: f.column + " " + op + " ?", Params: []any{value}}, nil
}

// literal extracts a constant operand. Timestamps become unix milliseconds to
// match the stored created_at column.
func literal(e *expr.Expr) (any, error) {
	if call := e.GetCallExpr(); call != nil {
		if call.GetFunction() != filtering.FunctionTimestamp || len(call.GetArgs()) != 1 {
			return nil, fmt.Errorf("unsupported function in value position: %s", call.GetFunction())
		}
		raw, ok := call.GetArgs()[0].GetConstExpr().GetConstantKind().(*expr.Constant_StringValue)
		if !ok {
			return nil, fmt.Errorf("timestamp argument must be a string")
		}
		t, err := time.Parse(time.RFC3339Nano, raw.StringValue)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q", raw.StringValue)
		}
		return t.UTC().UnixMilli(), nil
	}
	c := e.GetConstExpr()
	if c == nil {
		return nil, fmt.Errorf("expected constant, got %T", e.GetExprKind())
	}
	switch kind := c.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant %T", kind)
	}
}
