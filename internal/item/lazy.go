package item

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/papapumpkin/bootforge/internal/convert"
)

// lineageFields are kept on a stub so the graph can be walked without
// loading it.
var lineageFields = []Field{FieldName, FieldUID, FieldParent, FieldDepth, FieldDistro, FieldMenu, FieldRepos, FieldProfile, FieldImage}

// NewStub builds a lazy item from the lineage fields of m. The env's Loader
// supplies the full map on first access to any other attribute.
func NewStub(env *Env, f Family, m map[string]any) (*Item, error) {
	it := newItem(env, f)
	stub := make(map[string]any, len(lineageFields))
	for _, field := range lineageFields {
		if v, ok := m[string(field)]; ok {
			if _, isRef := referenceTarget(field); isRef && !f.hasReference(field) {
				continue
			}
			stub[string(field)] = v
		}
	}
	if err := it.FromMap(stub); err != nil {
		return nil, err
	}
	it.finish()
	it.inMemory = false
	return it, nil
}

// Deserialize materializes a stub: the items it depends on are loaded first,
// then the full map is applied with change hooks suppressed.
func (i *Item) Deserialize() error {
	if i.inMemory || i.loading {
		return nil
	}
	if i.env == nil || i.env.Loader == nil {
		return fmt.Errorf("%s: lazy item has no loader", i)
	}
	i.loading = true
	defer func() { i.loading = false }()

	m, err := i.env.Loader.Load(i)
	if err != nil {
		return fmt.Errorf("load %s: %w", i, err)
	}
	for _, ancestor := range Families {
		for _, dep := range Dependents(ancestor) {
			if dep.Family != i.family {
				continue
			}
			v, ok := m[string(dep.Field)]
			if !ok {
				continue
			}
			names, err := cast.ToStringSliceE(v)
			if err != nil {
				continue
			}
			for _, n := range names {
				if n == "" || convert.IsInherited(n) {
					continue
				}
				if a := i.env.get(ancestor, n); a != nil && a != i {
					if err := a.Deserialize(); err != nil {
						return err
					}
				}
			}
		}
	}

	i.initialized = false
	err = i.FromMap(m)
	i.initialized = true
	if err != nil {
		return fmt.Errorf("deserialize %s: %w", i, err)
	}
	i.inMemory = true
	i.cache.clear()
	return nil
}

// ensureLoaded materializes a stub before its attributes are read or
// written. A failed load leaves the stub out of memory.
func (i *Item) ensureLoaded() error {
	if i.inMemory || i.loading {
		return nil
	}
	return i.Deserialize()
}
