// Package placeholder implements the Placeholder Resolver (spec §4.5):
// substitution of `{{stepId.path.with.dots[index]}}` templates in step
// arguments using prior steps' results.
package placeholder

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// templateRe matches a whole `{{...}}` template and captures its inner
// path, per the grammar suggested in spec §9: {{stepId(\.ident|\[index\])+}}.
var templateRe = regexp.MustCompile(`\{\{([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+|\[[0-9]+\])*)\}\}`)

// Lookup resolves a prior step's output by stepId. The resolver only needs
// read access to each step's Result.Data.
type Lookup func(stepID string) (data any, found bool)

// ResolveArguments scans every string argument in the raw JSON arguments
// for placeholder templates and substitutes them via lookup, returning the
// rewritten JSON and whether any template failed to resolve (spec §4.5:
// unresolved templates are left literal and annotated as a warning, not a
// fatal error).
func ResolveArguments(args json.RawMessage, lookup Lookup) (json.RawMessage, bool, error) {
	if len(args) == 0 {
		return args, false, nil
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return args, false, err
	}

	hadWarning := false
	resolved := resolveValue(v, lookup, &hadWarning)

	out, err := json.Marshal(resolved)
	if err != nil {
		return args, hadWarning, err
	}
	return out, hadWarning, nil
}

func resolveValue(v any, lookup Lookup, warned *bool) any {
	switch t := v.(type) {
	case string:
		return resolveString(t, lookup, warned)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = resolveValue(child, lookup, warned)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = resolveValue(child, lookup, warned)
		}
		return out
	default:
		return t
	}
}

// resolveString resolves every `{{...}}` template inside s. A single
// whole-value template that resolves to a non-string value replaces the
// entire string with that raw value (spec §4.5); templates embedded in a
// larger string are stringified and concatenated in place.
func resolveString(s string, lookup Lookup, warned *bool) any {
	matches := templateRe.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := s[matches[0][2]:matches[0][3]]
		value, ok := resolvePath(path, lookup)
		if !ok {
			*warned = true
			return s
		}
		return value
	}

	var b strings.Builder
	last := 0
	anyUnresolved := false
	for _, m := range matches {
		start, end := m[0], m[1]
		pathStart, pathEnd := m[2], m[3]
		b.WriteString(s[last:start])
		path := s[pathStart:pathEnd]
		value, ok := resolvePath(path, lookup)
		if !ok {
			anyUnresolved = true
			b.WriteString(s[start:end])
		} else {
			b.WriteString(stringify(value))
		}
		last = end
	}
	b.WriteString(s[last:])
	if anyUnresolved {
		*warned = true
	}
	return b.String()
}

// pathSegmentRe splits a resolved path into dotted-field and bracketed-index
// segments, e.g. "data[0].from" -> ["data", "[0]", "from"].
var pathSegmentRe = regexp.MustCompile(`[A-Za-z0-9_]+|\[[0-9]+\]`)

// resolvePath takes "stepId.field.path[index]" and navigates the named
// step's Result.Data.
func resolvePath(path string, lookup Lookup) (any, bool) {
	segments := pathSegmentRe.FindAllString(path, -1)
	if len(segments) == 0 {
		return nil, false
	}
	stepID := segments[0]
	data, found := lookup(stepID)
	if !found {
		return nil, false
	}

	current := data
	for _, seg := range segments[1:] {
		if strings.HasPrefix(seg, "[") {
			idxStr := strings.TrimSuffix(strings.TrimPrefix(seg, "["), "]")
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			arr, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
			continue
		}
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		val, ok := obj[seg]
		if !ok {
			return nil, false
		}
		current = val
	}
	return current, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// LookupFromRun builds a Lookup over a Run's completed steps, exposing
// step.Result.Data keyed by stepId (spec §4.5).
func LookupFromRun(run *models.Run) Lookup {
	return func(stepID string) (any, bool) {
		step := run.StepByID(stepID)
		if step == nil || step.Result == nil {
			return nil, false
		}
		return step.Result.Data, true
	}
}
