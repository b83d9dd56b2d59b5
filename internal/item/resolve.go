package item

import (
	"fmt"
	"reflect"

	"github.com/spf13/cast"

	"github.com/papapumpkin/bootforge/internal/convert"
	"github.com/papapumpkin/bootforge/internal/metrics"
)

// Resolve returns the effective value of an inheritable field. Scalars take
// the first concrete value up the chain; dicts merge the conceptual parent's
// mapping (or the settings one) under the item's own keys.
func (i *Item) Resolve(field Field) (any, error) {
	def, ok := inheritables[field]
	if !ok || !i.family.Supports(field) {
		return nil, fmt.Errorf("%s: %w: %s", i, ErrUnknownField, field)
	}
	if err := i.ensureLoaded(); err != nil {
		return nil, err
	}
	kind := "scalar"
	if def.Kind == KindDict {
		kind = "dict"
	}
	return i.cachedField(field, kind, func() (any, error) {
		if def.Kind == KindDict {
			return i.resolveDict(def)
		}
		return i.resolveScalar(def)
	})
}

func (i *Item) resolveScalar(def Inheritable) (any, error) {
	v := i.raw[def.Name]
	if !convert.IsInherited(v) {
		return convert.Clone(v), nil
	}
	if p := i.Parent(); p != nil && p.family.Supports(def.Name) {
		return p.Resolve(def.Name)
	}
	cp, err := i.ConceptualParent()
	if err != nil {
		return nil, err
	}
	if cp != nil && cp.family.Supports(def.Name) {
		return cp.Resolve(def.Name)
	}
	for _, key := range []string{def.Setting, "default_" + def.Setting} {
		if s, ok := i.env.setting(key); ok {
			return coerce(def, s)
		}
	}
	metrics.ResolutionErrorsTotal.WithLabelValues(i.family.String()).Inc()
	return nil, &ResolutionError{Family: i.family, Name: i.name, Field: def.Name}
}

func (i *Item) resolveDict(def Inheritable) (map[string]any, error) {
	merged := map[string]any{}

	cp, err := i.ConceptualParent()
	if err != nil {
		return nil, err
	}
	if cp != nil && cp.family.Supports(def.Name) {
		up, err := cp.Resolve(def.Name)
		if err != nil {
			return nil, err
		}
		for k, v := range up.(map[string]any) {
			merged[k] = v
		}
	} else if s, ok := i.env.setting(def.Setting); ok {
		up, err := settingDict(def, s)
		if err != nil {
			return nil, err
		}
		for k, v := range up {
			merged[k] = v
		}
	}

	if own, ok := i.raw[def.Name].(map[string]any); ok {
		for k, v := range own {
			merged[k] = convert.Clone(v)
		}
	}
	convert.Annihilate(merged)
	return merged, nil
}

func settingDict(def Inheritable, s any) (map[string]any, error) {
	if str, ok := s.(string); ok {
		return convert.StringOrDictNoInherit(str, def.Multiples)
	}
	m, err := cast.ToStringMapE(s)
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", def.Setting, err)
	}
	return m, nil
}

// deduplicate drops the keys of value that the chain above already
// resolves to the same value.
func (i *Item) deduplicate(def Inheritable, value map[string]any) (map[string]any, error) {
	upstream, err := i.upstreamDict(def)
	if err != nil {
		return nil, err
	}
	for k, uv := range upstream {
		if v, ok := value[k]; ok && reflect.DeepEqual(v, uv) {
			delete(value, k)
		}
	}
	return value, nil
}

func (i *Item) upstreamDict(def Inheritable) (map[string]any, error) {
	if p := i.Parent(); p != nil && p.family.Supports(def.Name) {
		v, err := p.Resolve(def.Name)
		if err != nil {
			return nil, err
		}
		return v.(map[string]any), nil
	}
	cp, err := i.ConceptualParent()
	if err != nil {
		return nil, err
	}
	if cp != nil && cp.family.Supports(def.Name) {
		v, err := cp.Resolve(def.Name)
		if err != nil {
			return nil, err
		}
		return v.(map[string]any), nil
	}
	for _, key := range []string{def.Setting, "default_" + def.Setting} {
		if s, ok := i.env.setting(key); ok {
			return settingDict(def, s)
		}
	}
	return map[string]any{}, nil
}

// ResolveString resolves a string scalar.
func (i *Item) ResolveString(field Field) (string, error) {
	v, err := i.Resolve(field)
	if err != nil {
		return "", err
	}
	return cast.ToStringE(v)
}

// ResolveBool resolves a boolean scalar.
func (i *Item) ResolveBool(field Field) (bool, error) {
	v, err := i.Resolve(field)
	if err != nil {
		return false, err
	}
	return cast.ToBoolE(v)
}

// ResolveInt resolves an integer scalar.
func (i *Item) ResolveInt(field Field) (int, error) {
	v, err := i.Resolve(field)
	if err != nil {
		return 0, err
	}
	return cast.ToIntE(v)
}

// ResolveStrings resolves a list scalar.
func (i *Item) ResolveStrings(field Field) ([]string, error) {
	v, err := i.Resolve(field)
	if err != nil {
		return nil, err
	}
	return cast.ToStringSliceE(v)
}

// ResolveDict resolves a dict field.
func (i *Item) ResolveDict(field Field) (map[string]any, error) {
	v, err := i.Resolve(field)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, typeError(field, v, "dict")
	}
	return m, nil
}

// KernelOptions is the merged kernel command line mapping.
func (i *Item) KernelOptions() (map[string]any, error) {
	return i.ResolveDict(FieldKernelOptions)
}

// AutoinstallMeta is the merged autoinstall template metadata.
func (i *Item) AutoinstallMeta() (map[string]any, error) {
	return i.ResolveDict(FieldAutoinstallMeta)
}
