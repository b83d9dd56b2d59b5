// Package inventory loads items from TOML documents into a registry. A
// document lists entries per family; Plan orders them so parents and
// referenced items are created first, and Sync reconciles a live registry
// with an edited document.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"

	"github.com/papapumpkin/bootforge/internal/item"
)

// Document is a parsed inventory file. Each table array holds the
// flattened attribute maps of one family:
//
//	[[distro]]
//	name = "rhel9"
//	kernel_options = "console=ttyS0"
//
//	[[profile]]
//	name = "web"
//	distro = "rhel9"
type Document struct {
	Repos    []map[string]any `toml:"repo"`
	Distros  []map[string]any `toml:"distro"`
	Menus    []map[string]any `toml:"menu"`
	Profiles []map[string]any `toml:"profile"`
	Images   []map[string]any `toml:"image"`
	Systems  []map[string]any `toml:"system"`
}

// Entry is one item definition from a document.
type Entry struct {
	Family item.Family
	Name   string
	Fields map[string]any
}

// Key identifies the entry across documents ("profile/web").
func (e Entry) Key() string {
	return key(e.Family, e.Name)
}

// Keys returns the keys of entries in order.
func Keys(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key()
	}
	return out
}

func key(f item.Family, name string) string {
	return f.String() + "/" + name
}

// Parse decodes a TOML inventory document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing inventory: %w", err)
	}
	return &doc, nil
}

// ReadFile reads and parses the inventory at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoInventory, path)
		}
		return nil, fmt.Errorf("reading inventory: %w", err)
	}
	return Parse(data)
}

func (d *Document) tables() map[item.Family][]map[string]any {
	return map[item.Family][]map[string]any{
		item.Repo:    d.Repos,
		item.Distro:  d.Distros,
		item.Menu:    d.Menus,
		item.Profile: d.Profiles,
		item.Image:   d.Images,
		item.System:  d.Systems,
	}
}

// Entries returns every entry in family load order, then document order.
// Nameless and duplicate entries are errors.
func (d *Document) Entries() ([]Entry, error) {
	var (
		out  []Entry
		errs []error
	)
	tables := d.tables()
	for _, f := range item.Families {
		seen := make(map[string]bool, len(tables[f]))
		for i, fields := range tables[f] {
			name, _ := cast.ToStringE(fields["name"])
			if name == "" {
				errs = append(errs, fmt.Errorf("%s #%d: %w", f, i+1, ErrMissingName))
				continue
			}
			if seen[name] {
				errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateEntry, key(f, name)))
				continue
			}
			seen[name] = true
			out = append(out, Entry{Family: f, Name: name, Fields: fields})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Len returns the number of entries across all families.
func (d *Document) Len() int {
	n := 0
	for _, t := range d.tables() {
		n += len(t)
	}
	return n
}

// Diff lists the keys whose fields differ between two documents.
type Diff struct {
	Added   []Entry
	Changed []Entry
	Removed []Entry
}

// Empty reports whether the documents are equivalent.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// Compare diffs next against prev. Entries keep load order; callers
// remove in reverse.
func Compare(prev, next []Entry) Diff {
	old := make(map[string]Entry, len(prev))
	for _, e := range prev {
		old[e.Key()] = e
	}
	var diff Diff
	kept := make(map[string]bool, len(next))
	for _, e := range next {
		kept[e.Key()] = true
		was, ok := old[e.Key()]
		switch {
		case !ok:
			diff.Added = append(diff.Added, e)
		case !reflect.DeepEqual(was.Fields, e.Fields):
			diff.Changed = append(diff.Changed, e)
		}
	}
	for _, e := range prev {
		if !kept[e.Key()] {
			diff.Removed = append(diff.Removed, e)
		}
	}
	return diff
}
