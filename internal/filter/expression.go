package filter

import (
	"encoding/json"
	"fmt"
)

// Expression operators understood by the map surface.
const (
	OpAll  = "all"
	OpAny  = "any"
	OpEq   = "=="
	OpGet  = "get"
	OpCase = "case"
)

// Expression is a declarative map-surface expression in array form, e.g.
// ["all", ["==", ["get", "age_small"], "TRUE"]].
type Expression []interface{}

// AcceptAll is the expression that passes every feature.
func AcceptAll() Expression {
	return Expression{OpAll}
}

// Equals builds ["==", ["get", key], value].
func Equals(key string, value interface{}) Expression {
	return Expression{OpEq, Expression{OpGet, key}, value}
}

// Expression converts the selection to the map-surface filter: an "all" of
// one clause per key (sorted), each clause a single equality test or an
// "any" over the selected values.
func (s Selection) Expression() Expression {
	expr := AcceptAll()
	for _, key := range s.Keys() {
		values := s[key]
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			expr = append(expr, Equals(key, values[0]))
			continue
		}
		clause := Expression{OpAny}
		for _, v := range values {
			clause = append(clause, Equals(key, v))
		}
		expr = append(expr, clause)
	}
	return expr
}

// MarshalJSON keeps nil expressions encoding as an empty array.
func (e Expression) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]interface{}(e))
}

// Evaluate interprets expr against props the way the map surface does for
// the supported operators. Non-array values evaluate to themselves; a
// missing property evaluates to nil.
func Evaluate(expr interface{}, props Properties) (interface{}, error) {
	args, ok := asList(expr)
	if !ok {
		return expr, nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	op, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("expression operator must be a string, got %T", args[0])
	}

	switch op {
	case OpGet:
		if len(args) != 2 {
			return nil, fmt.Errorf("%q expects 1 argument, got %d", op, len(args)-1)
		}
		key, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("%q expects a string key", op)
		}
		if v, ok := props.Value(key); ok {
			return v, nil
		}
		return nil, nil

	case OpEq:
		if len(args) != 3 {
			return nil, fmt.Errorf("%q expects 2 arguments, got %d", op, len(args)-1)
		}
		left, err := Evaluate(args[1], props)
		if err != nil {
			return nil, err
		}
		right, err := Evaluate(args[2], props)
		if err != nil {
			return nil, err
		}
		return left == right, nil

	case OpAll, OpAny:
		for _, a := range args[1:] {
			v, err := Evaluate(a, props)
			if err != nil {
				return nil, err
			}
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("%q expects boolean operands, got %T", op, v)
			}
			if op == OpAll && !b {
				return false, nil
			}
			if op == OpAny && b {
				return true, nil
			}
		}
		return op == OpAll, nil

	case OpCase:
		// ["case", cond, out, cond, out, ..., fallback]
		if len(args) < 2 || len(args)%2 != 0 {
			return nil, fmt.Errorf("%q expects condition/output pairs and a fallback", op)
		}
		for i := 1; i+1 < len(args); i += 2 {
			v, err := Evaluate(args[i], props)
			if err != nil {
				return nil, err
			}
			if b, ok := v.(bool); ok && b {
				return Evaluate(args[i+1], props)
			}
		}
		return Evaluate(args[len(args)-1], props)
	}

	return nil, fmt.Errorf("unsupported operator %q", op)
}

// Accepts evaluates a filter expression to a boolean.
func Accepts(expr Expression, props Properties) (bool, error) {
	v, err := Evaluate(expr, props)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression evaluated to %T, want bool", v)
	}
	return b, nil
}

func asList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case Expression:
		return t, true
	case []interface{}:
		return t, true
	}
	return nil, false
}
