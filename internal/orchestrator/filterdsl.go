// Package orchestrator implements the Tool Orchestrator (spec §4.6): a
// single resolved tool call is routed to the cache-read or action-dispatch
// path, with the cache path's in-memory filter/sort/offset/limit/projection
// DSL and body normalization for LLM consumption.
package orchestrator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Condition is one clause of the filter DSL (spec §4.6).
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
	Values   []any  `json:"values,omitempty"`
}

// OrderBy is one sort key.
type OrderBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // "asc" | "desc"
}

// FilterSpec is the full cache-path query shape (spec §4.6).
type FilterSpec struct {
	Conditions    []Condition `json:"conditions,omitempty"`
	Logic         string      `json:"logic,omitempty"`
	OrderBy       []OrderBy   `json:"orderBy,omitempty"`
	Limit         int         `json:"limit,omitempty"`
	Offset        int         `json:"offset,omitempty"`
	IncludeFields []string    `json:"includeFields,omitempty"`
	ExcludeFields []string    `json:"excludeFields,omitempty"`
}

// Apply runs filter -> sort -> offset -> limit -> projection over rows, in
// that fixed order (spec §4.6).
func Apply(rows []map[string]any, spec FilterSpec) ([]map[string]any, error) {
	filtered, err := filterRows(rows, spec.Conditions, spec.Logic)
	if err != nil {
		return nil, err
	}
	sortRows(filtered, spec.OrderBy)
	filtered = paginate(filtered, spec.Offset, spec.Limit)
	return project(filtered, spec.IncludeFields, spec.ExcludeFields), nil
}

func filterRows(rows []map[string]any, conditions []Condition, logic string) ([]map[string]any, error) {
	if len(conditions) == 0 {
		return rows, nil
	}
	expr, err := parseLogic(logic, len(conditions))
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		results := make([]bool, len(conditions))
		for i, c := range conditions {
			match, err := evalCondition(row, c)
			if err != nil {
				return nil, err
			}
			results[i] = match
		}
		if expr.eval(results) {
			out = append(out, row)
		}
	}
	return out, nil
}

func evalCondition(row map[string]any, c Condition) (bool, error) {
	actual, present := row[c.Field]
	switch c.Operator {
	case "equals":
		return present && compareEqual(actual, c.Value), nil
	case "not_equals":
		return !present || !compareEqual(actual, c.Value), nil
	case "contains":
		as, ok1 := actual.(string)
		vs, ok2 := c.Value.(string)
		return ok1 && ok2 && strings.Contains(as, vs), nil
	case "greater_than":
		a, ok1 := toFloat(actual)
		v, ok2 := toFloat(c.Value)
		return present && ok1 && ok2 && a > v, nil
	case "less_than":
		a, ok1 := toFloat(actual)
		v, ok2 := toFloat(c.Value)
		return present && ok1 && ok2 && a < v, nil
	case "in":
		if !present {
			return false, nil
		}
		for _, v := range c.Values {
			if compareEqual(actual, v) {
				return true, nil
			}
		}
		return false, nil
	case "not_in":
		if !present {
			return true, nil
		}
		for _, v := range c.Values {
			if compareEqual(actual, v) {
				return false, nil
			}
		}
		return true, nil
	case "between":
		if len(c.Values) != 2 {
			return false, fmt.Errorf("filter: between requires exactly 2 values")
		}
		a, ok1 := toFloat(actual)
		lo, ok2 := toFloat(c.Values[0])
		hi, ok3 := toFloat(c.Values[1])
		return present && ok1 && ok2 && ok3 && a >= lo && a <= hi, nil
	case "is_null":
		return !present || actual == nil, nil
	case "is_not_null":
		return present && actual != nil, nil
	default:
		return false, fmt.Errorf("filter: unknown operator %q", c.Operator)
	}
}

func compareEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func sortRows(rows []map[string]any, orderBy []OrderBy) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ob := range orderBy {
			ai, aj := rows[i][ob.Field], rows[j][ob.Field]
			cmp := compareValues(ai, aj)
			if cmp == 0 {
				continue
			}
			if ob.Direction == "desc" {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	return strings.Compare(as, bs)
}

func paginate(rows []map[string]any, offset, limit int) []map[string]any {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func project(rows []map[string]any, include, exclude []string) []map[string]any {
	if len(include) == 0 && len(exclude) == 0 {
		return rows
	}
	out := make([]map[string]any, len(rows))
	excludeSet := make(map[string]bool, len(exclude))
	for _, f := range exclude {
		excludeSet[f] = true
	}
	for i, row := range rows {
		projected := make(map[string]any)
		if len(include) > 0 {
			for _, f := range include {
				if v, ok := row[f]; ok {
					projected[f] = v
				}
			}
		} else {
			for k, v := range row {
				if !excludeSet[k] {
					projected[k] = v
				}
			}
		}
		out[i] = projected
	}
	return out
}
