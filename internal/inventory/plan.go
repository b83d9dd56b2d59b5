package inventory

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/papapumpkin/bootforge/internal/convert"
	"github.com/papapumpkin/bootforge/internal/dag"
	"github.com/papapumpkin/bootforge/internal/item"
)

// requires returns the keys of the entries e names through its parent
// and reference fields.
func requires(e Entry) ([]string, error) {
	var out []string
	if e.Family.SupportsParent() {
		if p, _ := cast.ToStringE(e.Fields[string(item.FieldParent)]); p != "" {
			out = append(out, key(e.Family, p))
		}
	}
	for _, field := range e.Family.References() {
		v, ok := e.Fields[string(field)]
		if !ok {
			continue
		}
		target, _ := e.Family.ReferenceTarget(field)
		names, err := convert.StringOrListNoInherit(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", e.Key(), field, err)
		}
		for _, n := range names {
			if n == "" || convert.IsInherited(n) {
				continue
			}
			out = append(out, key(target, n))
		}
	}
	return out, nil
}

// Plan orders entries so every entry follows the entries it references.
// Unknown references and cycles are errors; the error for a cycle names
// its path.
func Plan(entries []Entry) ([]Entry, error) {
	g := dag.New()
	byKey := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if err := g.AddNode(e.Key(), int(e.Family), nil); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Key())
		}
		byKey[e.Key()] = e
	}

	var errs []error
	for _, e := range entries {
		deps, err := requires(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, dep := range deps {
			if _, ok := byKey[dep]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s names %s", ErrUnknownReference, e.Key(), dep))
				continue
			}
			if err := g.AddEdge(e.Key(), dep); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(order))
	for i, k := range order {
		out[i] = byKey[k]
	}
	return out, nil
}

// Validate parses and plans doc, returning every problem found.
func Validate(doc *Document) error {
	entries, err := doc.Entries()
	if err != nil {
		return err
	}
	_, err = Plan(entries)
	return err
}
