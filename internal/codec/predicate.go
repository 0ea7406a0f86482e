package codec

import (
	"encoding/json"
	"fmt"
)

// Predicate is a single column/op/literal comparison. This is the whole
// of the ad-hoc query surface: declared, never parsed.
type Predicate struct {
	Column string
	Op     string // eq|ne|gt|ge|lt|le
	Value  any
}

func (p Predicate) Validate() error {
	switch p.Op {
	case "eq", "ne", "gt", "ge", "lt", "le":
	default:
		return fmt.Errorf("codec: unknown predicate op %q", p.Op)
	}
	if p.Column == "" {
		return fmt.Errorf("codec: predicate needs a column")
	}
	return nil
}

// Eval applies the predicate to a row. Numeric columns compare
// numerically; anything else supports eq/ne on the string form.
func (p Predicate) Eval(row Row) (bool, error) {
	v, ok := row[p.Column]
	if !ok {
		return false, fmt.Errorf("codec: record has no %q column", p.Column)
	}

	if n, ok := v.(json.Number); ok {
		lf, err := n.Float64()
		if err != nil {
			return false, err
		}
		rf, err := literalNumber(p.Value)
		if err != nil {
			return false, err
		}
		switch p.Op {
		case "eq":
			return lf == rf, nil
		case "ne":
			return lf != rf, nil
		case "gt":
			return lf > rf, nil
		case "ge":
			return lf >= rf, nil
		case "lt":
			return lf < rf, nil
		case "le":
			return lf <= rf, nil
		}
	}

	ls, err := Text(row, p.Column)
	if err != nil {
		return false, err
	}
	rs := fmt.Sprintf("%v", p.Value)
	switch p.Op {
	case "eq":
		return ls == rs, nil
	case "ne":
		return ls != rs, nil
	}
	return false, fmt.Errorf("codec: op %q needs a numeric column %q", p.Op, p.Column)
}

func literalNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	default:
		return 0, fmt.Errorf("codec: predicate literal %v is not numeric", v)
	}
}
