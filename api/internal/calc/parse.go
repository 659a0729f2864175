package calc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	keyExpr   = "expr"
	keyResult = "result"
	keyAssign = "assign"
)

// ParseRecords decodes a normalized reply into a batch. The reply must be a
// JSON list of flat objects. Objects without a non-null expr and result are
// skipped; any other structural problem yields an empty batch and an error
// wrapping ErrDegradedParse.
//
// Assign is true whenever the object carries an "assign" key, whatever its
// value.
func ParseRecords(text string) (Batch, int, error) {
	var objs []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &objs); err != nil {
		return Batch{}, 0, fmt.Errorf("%w: %v", ErrDegradedParse, err)
	}
	if objs == nil {
		return Batch{}, 0, fmt.Errorf("%w: reply is not a list", ErrDegradedParse)
	}

	out := make(Batch, 0, len(objs))
	dropped := 0
	for i, obj := range objs {
		if obj == nil {
			return Batch{}, 0, fmt.Errorf("%w: item %d is not an object", ErrDegradedParse, i)
		}
		for k, v := range obj {
			if !isScalar(v) {
				return Batch{}, 0, fmt.Errorf("%w: item %d key %q is not a scalar", ErrDegradedParse, i, k)
			}
		}

		expr, err := decodeScalar(obj[keyExpr])
		if err != nil {
			return Batch{}, 0, fmt.Errorf("%w: item %d expr: %v", ErrDegradedParse, i, err)
		}
		result, err := decodeScalar(obj[keyResult])
		if err != nil {
			return Batch{}, 0, fmt.Errorf("%w: item %d result: %v", ErrDegradedParse, i, err)
		}
		if expr == nil || result == nil {
			dropped++
			continue
		}

		_, assign := obj[keyAssign]
		out = append(out, Record{
			Expr:   exprString(expr),
			Result: result,
			Assign: assign,
		})
	}
	return out, dropped, nil
}

func isScalar(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] != '{' && v[0] != '['
}

// decodeScalar keeps numbers verbatim so 0.1 or large integers survive the
// trip back to the caller. Missing keys and JSON null both decode to nil.
func decodeScalar(v json.RawMessage) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func exprString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
