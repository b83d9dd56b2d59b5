// Package convert turns free-form attribute input (space or comma delimited
// strings, lists, maps) into the canonical shapes stored on provisioning
// items. It owns the two sentinels the inheritance engine depends on: the
// Inherited marker and the Annihilator delete-marker.
package convert

import (
	"fmt"
	"sort"
	"strings"
)

// Inherited is the raw value stored in an attribute whose effective value
// comes from the parent chain or the global settings.
const Inherited = "<<inherit>>"

// deleteWord clears a list or dict attribute when given as input.
const deleteWord = "delete"

type annihilator struct{}

func (annihilator) String() string { return "!" }

// MarshalText renders the marker as "!" so dumps stay readable.
func (annihilator) MarshalText() ([]byte, error) { return []byte("!"), nil }

// Annihilator is the value a dict key carries when a child explicitly
// removes an inherited key. String input spells it "!key".
var Annihilator any = annihilator{}

// IsInherited reports whether v is the Inherited sentinel.
func IsInherited(v any) bool {
	s, ok := v.(string)
	return ok && s == Inherited
}

// IsAnnihilator reports whether v is the Annihilator marker.
func IsAnnihilator(v any) bool {
	_, ok := v.(annihilator)
	return ok
}

// ConversionError reports input that cannot be converted to the requested shape.
type ConversionError struct {
	Value  any
	Reason string
}

// Error returns the reason along with the offending value's type.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %T: %s", e.Value, e.Reason)
}

// StringOrList converts v into a []string, or returns Inherited unchanged.
// Strings are split on whitespace and commas; "" and "delete" yield an
// empty list.
func StringOrList(v any) (any, error) {
	if IsInherited(v) {
		return Inherited, nil
	}
	return StringOrListNoInherit(v)
}

// StringOrListNoInherit is StringOrList for attributes that may not inherit.
func StringOrListNoInherit(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		if t == "" || t == deleteWord {
			return []string{}, nil
		}
		return strings.FieldsFunc(t, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		}), nil
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, &ConversionError{Value: v, Reason: fmt.Sprintf("list element %T is not a string", e)}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &ConversionError{Value: v, Reason: "expected string or list"}
	}
}

// StringOrDict converts v into a map[string]any, or returns Inherited
// unchanged. String input is "a=b c=d e !f": a bare key maps to nil, a key
// prefixed with "!" maps to Annihilator. With allowMultiples a repeated key
// collects its values into a []string; otherwise the last one wins.
func StringOrDict(v any, allowMultiples bool) (any, error) {
	if IsInherited(v) {
		return Inherited, nil
	}
	return StringOrDictNoInherit(v, allowMultiples)
}

// StringOrDictNoInherit is StringOrDict for attributes that may not inherit.
func StringOrDictNoInherit(v any, allowMultiples bool) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return map[string]any{}, nil
	case string:
		if t == deleteWord {
			return map[string]any{}, nil
		}
		if IsInherited(t) {
			return nil, &ConversionError{Value: v, Reason: "attribute cannot be inherited"}
		}
		return parseDict(t, allowMultiples)
	case map[string]any:
		return CloneDict(t), nil
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out, nil
	default:
		return nil, &ConversionError{Value: v, Reason: "expected string or mapping"}
	}
}

func parseDict(s string, allowMultiples bool) (map[string]any, error) {
	tokens, err := splitFields(s)
	if err != nil {
		return nil, &ConversionError{Value: s, Reason: err.Error()}
	}
	out := make(map[string]any, len(tokens))
	for _, tok := range tokens {
		key, value, hasValue := strings.Cut(tok, "=")
		if key == "" {
			continue
		}
		var val any
		if hasValue {
			val = value
		}
		if strings.HasPrefix(key, "!") && len(key) > 1 {
			key = key[1:]
			val = Annihilator
		}
		prev, exists := out[key]
		if !exists || !allowMultiples || IsAnnihilator(val) || IsAnnihilator(prev) {
			out[key] = val
			continue
		}
		switch p := prev.(type) {
		case []string:
			out[key] = append(p, stringOf(val))
		default:
			out[key] = []string{stringOf(prev), stringOf(val)}
		}
	}
	return out, nil
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// splitFields splits s on unquoted whitespace, honouring single quotes,
// double quotes, and backslash escapes.
func splitFields(s string) ([]string, error) {
	var (
		fields  []string
		cur     strings.Builder
		inField bool
		quote   rune
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inField = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inField = true
		case r == ' ' || r == '\t' || r == '\n':
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, fmt.Errorf("trailing escape character")
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields, nil
}

// Annihilate deletes, in place, every key of m whose value is the
// Annihilator marker.
func Annihilate(m map[string]any) {
	for k, v := range m {
		if IsAnnihilator(v) {
			delete(m, k)
		}
	}
}

// FormatDict renders m in the "a=b c d=e !f" input syntax with sorted keys.
func FormatDict(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := m[k].(type) {
		case nil:
			parts = append(parts, k)
		case annihilator:
			parts = append(parts, "!"+k)
		case []string:
			for _, e := range v {
				parts = append(parts, k+"="+e)
			}
		default:
			parts = append(parts, k+"="+fmt.Sprint(v))
		}
	}
	return strings.Join(parts, " ")
}

// CloneDict returns a deep copy of m.
func CloneDict(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

// Clone deep-copies maps and slices so cached values cannot be mutated
// through a returned reference. Other values are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneDict(t)
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}
