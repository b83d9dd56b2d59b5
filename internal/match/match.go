// Package match evaluates search criteria against the flattened attribute
// map of an item. Strings compare case-insensitively with optional shell
// globs, lists by token membership, maps by key=value subsets, and booleans
// by truthy tokens. A pattern prefixed with "~" negates its criterion.
package match

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/papapumpkin/bootforge/internal/convert"
)

// ErrUnknownField is returned by strict matching when a criterion names a
// field the item does not have.
var ErrUnknownField = errors.New("searching for field that does not exist")

// TypeError reports a candidate value whose type cannot be compared with a pattern.
type TypeError struct {
	Candidate any
}

// Error names the unsupported candidate type.
func (e *TypeError) Error() string {
	return fmt.Sprintf("find cannot compare type: %T", e.Candidate)
}

// InterfaceFields are the field names that, on items carrying an
// "interfaces" map, are looked up inside every network interface before the
// top-level attribute map.
var InterfaceFields = map[string]bool{
	"bonding_opts":         true,
	"bridge_opts":          true,
	"cnames":               true,
	"connected_mode":       true,
	"dhcp_tag":             true,
	"dns_name":             true,
	"if_gateway":           true,
	"interface":            true,
	"interface_master":     true,
	"interface_type":       true,
	"ip_address":           true,
	"ipv6_address":         true,
	"ipv6_default_gateway": true,
	"ipv6_mtu":             true,
	"ipv6_prefix":          true,
	"ipv6_secondaries":     true,
	"ipv6_static_routes":   true,
	"mac_address":          true,
	"management":           true,
	"mtu":                  true,
	"netmask":              true,
	"static":               true,
	"static_routes":        true,
	"virt_bridge":          true,
}

// truthy lists the tokens that select true when matched against a boolean.
var truthy = map[string]bool{"1": true, "true": true, "y": true, "yes": true}

// Criterion is a single field=pattern condition.
type Criterion struct {
	Field   string
	Pattern string
}

// Criteria is an ordered conjunction of conditions.
type Criteria []Criterion

// Where builds a single-condition Criteria.
func Where(field, pattern string) Criteria {
	return Criteria{{Field: field, Pattern: pattern}}
}

// ParseCriteria parses "field=pattern" arguments in order.
func ParseCriteria(args []string) (Criteria, error) {
	c := make(Criteria, 0, len(args))
	for _, arg := range args {
		field, pattern, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid criterion %q: expected field=pattern", arg)
		}
		c = append(c, Criterion{Field: field, Pattern: pattern})
	}
	return c, nil
}

// String renders the criteria back into field=pattern form.
func (c Criteria) String() string {
	parts := make([]string, len(c))
	for i, cr := range c {
		parts[i] = cr.Field + "=" + cr.Pattern
	}
	return strings.Join(parts, " ")
}

// All reports whether data satisfies every criterion, stopping at the first
// failure. When strict is false an unknown field simply fails to match;
// when strict is true it is an ErrUnknownField error.
func All(data map[string]any, criteria Criteria, strict bool) (bool, error) {
	for _, c := range criteria {
		pattern, negate := strings.CutPrefix(c.Pattern, "~")
		ok, err := Field(data, c.Field, pattern, strict)
		if err != nil {
			return false, err
		}
		if negate {
			ok = !ok
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Field matches a single field of data against pattern. For whitelisted
// interface fields the pattern also matches an interface name, or the
// field's value inside any interface.
func Field(data map[string]any, field, pattern string, strict bool) (bool, error) {
	checkedInterfaces := false
	if raw, ok := data["interfaces"]; ok && InterfaceFields[field] {
		checkedInterfaces = true
		ifaces := interfaceMaps(raw)
		names := make([]string, 0, len(ifaces))
		for name := range ifaces {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if pattern == name {
				return true, nil
			}
			v, ok := ifaces[name][field]
			if !ok {
				continue
			}
			matched, err := Compare(pattern, v)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
	}

	v, ok := data[field]
	if !ok {
		if !checkedInterfaces && strict {
			return false, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		return false, nil
	}
	return Compare(pattern, v)
}

func interfaceMaps(raw any) map[string]map[string]any {
	switch t := raw.(type) {
	case map[string]map[string]any:
		return t
	case map[string]any:
		out := make(map[string]map[string]any, len(t))
		for name, v := range t {
			if m, ok := v.(map[string]any); ok {
				out[name] = m
			}
		}
		return out
	default:
		return nil
	}
}

// Compare matches pattern against candidate according to the candidate's type.
func Compare(pattern string, candidate any) (bool, error) {
	switch c := candidate.(type) {
	case string:
		return compareString(pattern, c), nil
	case []string:
		return containsAll(pattern, c)
	case []any:
		elems := make([]string, len(c))
		for i, e := range c {
			elems[i] = fmt.Sprint(e)
		}
		return containsAll(pattern, elems)
	case map[string]any:
		return subsetOf(pattern, c)
	case map[string]string:
		m := make(map[string]any, len(c))
		for k, v := range c {
			m[k] = v
		}
		return subsetOf(pattern, m)
	case bool:
		return truthy[strings.ToLower(pattern)] == c, nil
	default:
		return false, &TypeError{Candidate: candidate}
	}
}

func compareString(pattern, candidate string) bool {
	p := strings.ToLower(pattern)
	c := strings.ToLower(candidate)
	if !strings.ContainsAny(p, "*?[") {
		return p == c
	}
	re, err := globRegexp(p)
	if err != nil {
		// A malformed set such as "[z-a]" degrades to a literal comparison.
		return p == c
	}
	return re.MatchString(c)
}

func containsAll(pattern string, elems []string) (bool, error) {
	tokens, err := convert.StringOrListNoInherit(pattern)
	if err != nil {
		return false, err
	}
	present := make(map[string]bool, len(elems))
	for _, e := range elems {
		present[e] = true
	}
	for _, tok := range tokens {
		if !present[tok] {
			return false, nil
		}
	}
	return true, nil
}

func subsetOf(pattern string, candidate map[string]any) (bool, error) {
	want, err := convert.StringOrDictNoInherit(pattern, true)
	if err != nil {
		return false, err
	}
	for k, v := range want {
		got, ok := candidate[k]
		if !ok || !valuesEqual(v, got) {
			return false, nil
		}
	}
	return true, nil
}

func valuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if isScalar(a) && isScalar(b) {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	return false
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int64, float64:
		return true
	}
	return false
}

var globCache sync.Map // lowered pattern -> *regexp.Regexp

// globRegexp translates an fnmatch-style pattern into an anchored regexp.
// "*" and "?" match any character including "/", and "[!...]" negates a set.
func globRegexp(pattern string) (*regexp.Regexp, error) {
	if re, ok := globCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	var b strings.Builder
	b.WriteString(`(?s)^`)
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i + 1
			if j < len(runes) && runes[j] == '!' {
				j++
			}
			if j < len(runes) && runes[j] == ']' {
				j++
			}
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				b.WriteString(`\[`)
				continue
			}
			set := string(runes[i+1 : j])
			set = strings.ReplaceAll(set, `\`, `\\`)
			if strings.HasPrefix(set, "!") {
				set = "^" + set[1:]
			} else if strings.HasPrefix(set, "^") {
				set = `\` + set
			}
			b.WriteString("[" + set + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	globCache.Store(pattern, re)
	return re, nil
}
