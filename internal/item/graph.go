package item

import (
	"fmt"

	"github.com/papapumpkin/bootforge/internal/convert"
	"github.com/papapumpkin/bootforge/internal/match"
)

// Layer is one level of an override chain: an item or the settings.
type Layer interface {
	Get(name string) (any, bool)
}

// Parent returns the same-family parent, or nil when unset or missing.
func (i *Item) Parent() *Item {
	if i.parent == "" || !i.family.SupportsParent() {
		return nil
	}
	return i.env.get(i.family, i.parent)
}

// SetParent links the item under a same-family parent and re-derives the
// depth of the item and its subtree. An empty name detaches the item. The
// item is left unchanged when the assignment is rejected.
func (i *Item) SetParent(name string) error {
	if name == "" {
		i.parent = ""
		i.depth = 0
		if err := i.redepthChildren(); err != nil {
			return err
		}
		return i.changed(FieldParent)
	}
	reject := func(reason string, err error) error {
		return &ParentError{Family: i.family, Item: i.name, Parent: name, Reason: reason, Err: err}
	}
	if !i.family.SupportsParent() {
		return reject(fmt.Sprintf("%s items do not support a parent", i.family), nil)
	}
	if name == i.name {
		return reject("self parentage is not allowed", nil)
	}
	p := i.env.get(i.family, name)
	if p == nil {
		return reject(fmt.Sprintf("%s %q not found", i.family, name), ErrReferenceNotFound)
	}
	seen := map[*Item]bool{}
	for a := p; a != nil; a = a.Parent() {
		if a == i || (i.name != "" && a.name == i.name) {
			return reject("parent is a descendant", ErrCycle)
		}
		if seen[a] {
			return reject("parent chain is cyclic", ErrCycle)
		}
		seen[a] = true
	}
	i.parent = name
	i.depth = p.depth + 1
	if err := i.redepthChildren(); err != nil {
		return err
	}
	return i.changed(FieldParent)
}

func (i *Item) redepthChildren() error {
	if !i.initialized {
		return nil
	}
	walk, err := i.TreeWalk()
	if err != nil {
		return err
	}
	for _, d := range walk {
		p := d.Parent()
		if p == nil || d.depth == p.depth+1 {
			continue
		}
		d.depth = p.depth + 1
		d.cache.clear()
	}
	return nil
}

// ConceptualParent returns the nearest ancestor of another family: the
// topmost same-family ancestor's previous-level reference, in table order.
func (i *Item) ConceptualParent() (*Item, error) {
	top := i
	seen := map[*Item]bool{i: true}
	for p := top.Parent(); p != nil; p = p.Parent() {
		if seen[p] {
			return nil, fmt.Errorf("%s: parent chain: %w", i, ErrCycle)
		}
		seen[p] = true
		top = p
	}
	for _, lvl := range PreviousLevels(top.family) {
		name := top.ReferenceName(lvl.Field)
		if name == "" || convert.IsInherited(name) {
			continue
		}
		if it := i.env.get(lvl.Family, name); it != nil {
			return it, nil
		}
	}
	return nil, nil
}

// LogicalParent returns the same-family parent if set, else the conceptual
// parent.
func (i *Item) LogicalParent() (*Item, error) {
	if p := i.Parent(); p != nil {
		return p, nil
	}
	return i.ConceptualParent()
}

// Children scans the family collection for items whose parent is this one.
func (i *Item) Children() []*Item {
	if !i.family.SupportsParent() || i.name == "" {
		return nil
	}
	var out []*Item
	for _, it := range i.env.items(i.family) {
		if it != i && it.parent == i.name {
			out = append(out, it)
		}
	}
	return out
}

// TreeWalk returns every strict same-family descendant in depth-first
// pre-order. A descendant reached twice means the parent table is
// malformed and fails with ErrCycle.
func (i *Item) TreeWalk() ([]*Item, error) {
	seen := map[*Item]bool{i: true}
	var out []*Item
	var walk func(n *Item) error
	walk = func(n *Item) error {
		for _, c := range n.Children() {
			if seen[c] {
				return fmt.Errorf("%s: tree walk revisits %s: %w", i, c, ErrCycle)
			}
			seen[c] = true
			out = append(out, c)
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(i); err != nil {
		return nil, err
	}
	return out, nil
}

// GrabTree returns the override chain: the item, each logical parent up to
// the root, then the settings.
func (i *Item) GrabTree() ([]Layer, error) {
	layers := []Layer{i}
	seen := map[*Item]bool{i: true}
	cur := i
	for {
		next, err := cur.LogicalParent()
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		if seen[next] {
			return nil, fmt.Errorf("%s: logical parent chain: %w", i, ErrCycle)
		}
		seen[next] = true
		layers = append(layers, next)
		cur = next
	}
	if s := i.Settings(); s != nil {
		layers = append(layers, s)
	}
	i.env.log().Debugf("grab_tree found %d children (including settings) of %s", len(layers), i)
	return layers, nil
}

// Descendants returns every item whose effective configuration depends on
// this one: the same-family subtree plus, transitively, every item whose
// reference field names a member of it. Each item appears once, in
// discovery order. The item itself is included only when it turns up as a
// dependent of one of its own dependents.
func (i *Item) Descendants() ([]*Item, error) {
	var out []*Item
	seen := map[*Item]bool{}
	expanded := map[*Item]bool{}

	add := func(it *Item) bool {
		if seen[it] {
			return false
		}
		seen[it] = true
		out = append(out, it)
		return true
	}

	var expand func(n *Item) error
	expand = func(n *Item) error {
		if expanded[n] {
			return nil
		}
		expanded[n] = true
		walk, err := n.TreeWalk()
		if err != nil {
			return err
		}
		for _, w := range walk {
			add(w)
		}
		for _, member := range append([]*Item{n}, walk...) {
			for _, dep := range Dependents(member.family) {
				found, err := i.env.find(dep.Family, match.Where(string(dep.Field), member.name))
				if err != nil {
					return fmt.Errorf("%s: find %s by %s: %w", i, dep.Family, dep.Field, err)
				}
				for _, f := range found {
					add(f)
					if err := expand(f); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	if err := expand(i); err != nil {
		return nil, err
	}
	return out, nil
}
