package item

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/papapumpkin/bootforge/internal/convert"
	"github.com/papapumpkin/bootforge/internal/match"
	"github.com/papapumpkin/bootforge/internal/telemetry"
)

// Item is one provisioning object: a distro, profile, image, system, menu,
// or repo. It owns its raw attribute values, which may hold the inherit
// sentinel, and resolves effective values through its parent chain and the
// global settings.
//
// Items are not safe for concurrent mutation. Callers serialize writers
// across the whole collection (see collection.Registry).
type Item struct {
	env    *Env
	family Family

	name        string
	uid         string
	parent      string
	depth       int
	comment     string
	isSubobject bool
	ctime       time.Time
	mtime       time.Time

	raw           map[Field]any
	refs          map[Field]any
	templateFiles map[string]any
	interfaces    map[string]*NetworkInterface

	// inMemory is false for lazy stubs until their full map is loaded.
	inMemory bool
	// initialized gates change hooks; false while the constructor runs.
	initialized bool
	loading     bool

	cache *Cache
}

func newItem(env *Env, f Family) *Item {
	it := &Item{
		env:           env,
		family:        f,
		raw:           make(map[Field]any),
		refs:          make(map[Field]any),
		templateFiles: make(map[string]any),
		cache:         newCache(),
		inMemory:      true,
	}
	for _, field := range f.InheritableFields() {
		def := inheritables[field]
		if def.Kind == KindDict {
			it.raw[field] = map[string]any{}
		} else {
			it.raw[field] = convert.Inherited
		}
	}
	for _, ref := range f.References() {
		if ref == FieldRepos {
			it.refs[ref] = []string{}
		} else {
			it.refs[ref] = ""
		}
	}
	if f.hasInterfaces() {
		it.interfaces = make(map[string]*NetworkInterface)
	}
	return it
}

// New builds a fully materialized item seeded from a flattened map. Change
// hooks stay off until construction completes.
func New(env *Env, f Family, seed map[string]any) (*Item, error) {
	it := newItem(env, f)
	if err := it.FromMap(seed); err != nil {
		return nil, err
	}
	it.finish()
	return it, nil
}

func (i *Item) finish() {
	if i.uid == "" {
		i.uid = newUID()
	}
	now := time.Now()
	if i.ctime.IsZero() {
		i.ctime = now
	}
	if i.mtime.IsZero() {
		i.mtime = now
	}
	i.initialized = true
}

func newUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Family returns the item's family.
func (i *Item) Family() Family { return i.family }

// Name returns the item's name, unique within its family.
func (i *Item) Name() string { return i.name }

// UID returns the process-assigned identifier.
func (i *Item) UID() string { return i.uid }

// ParentName returns the raw same-family parent name; empty means none.
func (i *Item) ParentName() string { return i.parent }

// Depth returns the item's depth in its same-family tree.
func (i *Item) Depth() int { return i.depth }

// Comment returns the free-form comment.
func (i *Item) Comment() string {
	if err := i.ensureLoaded(); err != nil {
		i.env.log().Warnf("%v", err)
	}
	return i.comment
}

// IsSubobject reports whether the item derives from a same-family parent.
func (i *Item) IsSubobject() bool { return i.isSubobject }

// InMemory reports whether the full attribute set is materialized.
func (i *Item) InMemory() bool { return i.inMemory }

// Ctime returns the creation time.
func (i *Item) Ctime() time.Time { return i.ctime }

// Mtime returns the time of the last mutation.
func (i *Item) Mtime() time.Time { return i.mtime }

// String returns "family/name".
func (i *Item) String() string {
	return i.family.String() + "/" + i.name
}

// Raw returns the stored value of an inheritable field, which may be the
// inherit sentinel.
func (i *Item) Raw(field Field) (any, error) {
	if err := i.ensureLoaded(); err != nil {
		return nil, err
	}
	v, ok := i.raw[field]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", i, ErrUnknownField, field)
	}
	return convert.Clone(v), nil
}

// Reference returns the raw value of a reference field.
func (i *Item) Reference(field Field) (any, bool) {
	v, ok := i.refs[field]
	if !ok {
		return nil, false
	}
	return convert.Clone(v), true
}

// ReferenceName returns a single-valued reference, or "" when unset or
// inherited.
func (i *Item) ReferenceName(field Field) string {
	s, _ := i.refs[field].(string)
	if convert.IsInherited(s) {
		return ""
	}
	return s
}

// TemplateFiles returns a copy of the non-inheritable template mapping.
func (i *Item) TemplateFiles() (map[string]any, error) {
	if err := i.ensureLoaded(); err != nil {
		return nil, err
	}
	return convert.CloneDict(i.templateFiles), nil
}

// changed is the last step of every mutator.
func (i *Item) changed(field Field) error {
	if !i.initialized {
		return nil
	}
	i.mtime = time.Now()
	if err := i.cleanCache(field); err != nil {
		return err
	}
	i.env.emit(telemetry.KindItemChanged, i, map[string]any{"field": string(field)})
	return nil
}

// SetName renames the item. A name equal to the parent's is rejected.
func (i *Item) SetName(name string) error {
	if name == "" {
		return &ValueError{Field: FieldName, Value: name, Message: "name must not be empty", Err: ErrTypeValidation}
	}
	if name == i.parent {
		return &ParentError{Family: i.family, Item: name, Parent: i.parent, Reason: "self parentage is not allowed"}
	}
	i.name = name
	return i.changed(FieldName)
}

// SetUID assigns the uid once; later different values fail with ErrImmutable.
func (i *Item) SetUID(uid string) error {
	if i.uid != "" && uid != i.uid {
		return fmt.Errorf("%s uid: %w", i, ErrImmutable)
	}
	i.uid = uid
	return i.changed(FieldUID)
}

// SetDepth accepts a depth only where it cannot contradict the parent
// chain: an item under a known parent always sits one level below it, and
// an item without a parent is a root.
func (i *Item) SetDepth(depth int) error {
	derived := depth
	switch p := i.Parent(); {
	case p != nil:
		derived = p.depth + 1
	case i.parent == "":
		derived = 0
	}
	if derived != depth {
		i.env.log().Debugf("%s: ignoring depth %d, derived %d", i, depth, derived)
	}
	i.depth = derived
	return i.changed(FieldDepth)
}

// SetComment replaces the comment.
func (i *Item) SetComment(comment string) error {
	if err := i.ensureLoaded(); err != nil {
		return err
	}
	i.comment = comment
	return i.changed(FieldComment)
}

// SetSubobject marks the item as derived from a same-family parent.
func (i *Item) SetSubobject(v bool) error {
	i.isSubobject = v
	return i.changed(FieldIsSubobject)
}

// SetTemplateFiles replaces the template mapping from a dict or a
// "key=value" string.
func (i *Item) SetTemplateFiles(v any) error {
	if err := i.ensureLoaded(); err != nil {
		return err
	}
	m, err := convert.StringOrDictNoInherit(v, false)
	if err != nil {
		return &ValueError{Field: FieldTemplateFiles, Value: v, Message: "invalid template files specified", Err: err}
	}
	i.templateFiles = m
	return i.changed(FieldTemplateFiles)
}

// SetDict stores an inheritable dict field from a mapping, a "k=v" string,
// or the inherit sentinel. Deduplicating fields drop keys the chain already
// resolves to the same value.
func (i *Item) SetDict(field Field, v any) error {
	def, ok := inheritables[field]
	if !ok || def.Kind != KindDict {
		return fmt.Errorf("%s: %w: %s is not a dict field", i, ErrUnknownField, field)
	}
	if err := i.ensureLoaded(); err != nil {
		return err
	}
	conv, err := convert.StringOrDict(v, def.Multiples)
	if err != nil {
		return &ValueError{Field: field, Value: v, Message: def.Invalid, Err: err}
	}
	if m, isMap := conv.(map[string]any); isMap && def.Dedupe {
		if conv, err = i.deduplicate(def, m); err != nil {
			return err
		}
	}
	i.raw[field] = conv
	return i.changed(field)
}

// SetScalar stores an inheritable scalar field, coercing v to the field's
// value type. The inherit sentinel is always accepted.
func (i *Item) SetScalar(field Field, v any) error {
	def, ok := inheritables[field]
	if !ok || def.Kind != KindScalar || !i.family.Supports(field) {
		return fmt.Errorf("%s: %w: %s", i, ErrUnknownField, field)
	}
	if err := i.ensureLoaded(); err != nil {
		return err
	}
	conv, err := coerce(def, v)
	if err != nil {
		return err
	}
	i.raw[field] = conv
	return i.changed(field)
}

func coerce(def Inheritable, v any) (any, error) {
	if convert.IsInherited(v) {
		return convert.Inherited, nil
	}
	var (
		out any
		err error
	)
	switch def.Type {
	case TypeString:
		out, err = cast.ToStringE(v)
	case TypeBool:
		out, err = cast.ToBoolE(v)
	case TypeInt:
		out, err = cast.ToIntE(v)
	case TypeFloat:
		out, err = cast.ToFloat64E(v)
	case TypeList:
		out, err = convert.StringOrListNoInherit(v)
	}
	if err != nil {
		return nil, &ValueError{Field: def.Name, Value: v, Message: def.Invalid, Err: errors.Join(ErrTypeValidation, err)}
	}
	return out, nil
}

// SetReference points a reference field at an item of the target family.
// Empty and inherited values clear the link. A system links to either a
// profile or an image, so setting one clears the other.
func (i *Item) SetReference(field Field, v any) error {
	target, ok := referenceTarget(field)
	if !ok || !i.family.hasReference(field) {
		return fmt.Errorf("%s: %w: %s", i, ErrUnknownField, field)
	}
	var stored any
	if field == FieldRepos {
		names, err := convert.StringOrListNoInherit(v)
		if err != nil {
			return &ValueError{Field: field, Value: v, Message: "invalid repos", Err: err}
		}
		for _, n := range names {
			if i.env.get(target, n) == nil {
				return fmt.Errorf("%s: repo %q: %w", i, n, ErrReferenceNotFound)
			}
		}
		stored = names
	} else {
		name, err := cast.ToStringE(v)
		if err != nil {
			return typeError(field, v, "string")
		}
		if name != "" && !convert.IsInherited(name) && i.env.get(target, name) == nil {
			return fmt.Errorf("%s: %s %q: %w", i, target, name, ErrReferenceNotFound)
		}
		stored = name
		if i.family == System && name != "" && !convert.IsInherited(name) {
			switch field {
			case FieldProfile:
				i.refs[FieldImage] = ""
			case FieldImage:
				i.refs[FieldProfile] = ""
			}
		}
	}
	i.refs[field] = stored
	return i.changed(field)
}

// Set dispatches a flattened key/value pair to the matching setter.
func (i *Item) Set(key string, v any) error {
	field := Field(key)
	switch field {
	case FieldName:
		s, err := cast.ToStringE(v)
		if err != nil {
			return typeError(field, v, "string")
		}
		return i.SetName(s)
	case FieldUID:
		s, err := cast.ToStringE(v)
		if err != nil {
			return typeError(field, v, "string")
		}
		return i.SetUID(s)
	case FieldParent:
		s, err := cast.ToStringE(v)
		if err != nil {
			return typeError(field, v, "string")
		}
		return i.SetParent(s)
	case FieldDepth:
		d, ok := asInt(v)
		if !ok {
			return typeError(field, v, "int")
		}
		return i.SetDepth(d)
	case FieldIsSubobject:
		b, ok := v.(bool)
		if !ok {
			return typeError(field, v, "bool")
		}
		return i.SetSubobject(b)
	case FieldComment:
		s, err := cast.ToStringE(v)
		if err != nil {
			return typeError(field, v, "string")
		}
		return i.SetComment(s)
	case FieldTemplateFiles:
		return i.SetTemplateFiles(v)
	case FieldInterfaces:
		return i.setInterfaces(v)
	case FieldCtime, FieldMtime:
		t, err := cast.ToFloat64E(v)
		if err != nil {
			return typeError(field, v, "float")
		}
		ts := fromEpoch(t)
		if field == FieldCtime {
			i.ctime = ts
		} else {
			i.mtime = ts
		}
		return nil
	}
	if _, isRef := referenceTarget(field); isRef && i.family.hasReference(field) {
		return i.SetReference(field, v)
	}
	def, ok := inheritables[field]
	if !ok || !i.family.Supports(field) {
		return fmt.Errorf("%s: %w: %s", i, ErrUnknownField, key)
	}
	if def.Kind == KindDict {
		return i.SetDict(field, v)
	}
	return i.SetScalar(field, v)
}

// asInt accepts only integral values; depth is never parsed from strings.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// seedOrder applies identity and lineage first so later setters can
// validate against them.
var seedOrder = []Field{FieldName, FieldUID, FieldParent, FieldDepth, FieldDistro, FieldMenu, FieldRepos, FieldProfile, FieldImage}

// FromMap applies a flattened map through the setters. Unknown keys and
// mistyped values fail.
func (i *Item) FromMap(m map[string]any) error {
	applied := make(map[string]bool, len(m))
	for _, f := range seedOrder {
		v, ok := m[string(f)]
		if !ok {
			continue
		}
		applied[string(f)] = true
		if err := i.Set(string(f), v); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if !applied[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := i.Set(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// ToMap flattens the item. With resolved set, inherited values are replaced
// by their effective values; otherwise the raw view is returned, sentinel
// included. Both views are cached.
func (i *Item) ToMap(resolved bool) (map[string]any, error) {
	if err := i.ensureLoaded(); err != nil {
		return nil, err
	}
	gen := i.cache.generation()
	if i.env.cacheEnabled() {
		if m, ok := i.cache.snapshot(resolved); ok {
			return m, nil
		}
	}
	m := map[string]any{
		string(FieldName):          i.name,
		string(FieldUID):           i.uid,
		string(FieldParent):        i.parent,
		string(FieldDepth):         i.depth,
		string(FieldComment):       i.comment,
		string(FieldIsSubobject):   i.isSubobject,
		string(FieldCtime):         epoch(i.ctime),
		string(FieldMtime):         epoch(i.mtime),
		string(FieldTemplateFiles): convert.CloneDict(i.templateFiles),
	}
	for f, v := range i.refs {
		m[string(f)] = convert.Clone(v)
	}
	if i.interfaces != nil {
		ifaces := make(map[string]any, len(i.interfaces))
		for n, nic := range i.interfaces {
			ifaces[n] = nic.ToMap()
		}
		m[string(FieldInterfaces)] = ifaces
	}
	for f, v := range i.raw {
		if !resolved {
			m[string(f)] = convert.Clone(v)
			continue
		}
		rv, err := i.Resolve(f)
		if err != nil {
			return nil, err
		}
		m[string(f)] = rv
	}
	if i.env.cacheEnabled() {
		i.cache.setSnapshot(gen, resolved, m)
	}
	return m, nil
}

// Get returns a resolved value by flattened key, making an item one layer
// of a GrabTree chain.
func (i *Item) Get(name string) (any, bool) {
	m, err := i.ToMap(true)
	if err != nil {
		i.env.log().Warnf("%s: %v", i, err)
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

// Match evaluates search criteria against the raw view of the item.
func (i *Item) Match(criteria match.Criteria, strict bool) (bool, error) {
	m, err := i.ToMap(false)
	if err != nil {
		return false, err
	}
	return match.All(m, criteria, strict)
}

// Settings returns the settings layer the item resolves against.
func (i *Item) Settings() Settings {
	if i.env == nil {
		return nil
	}
	return i.env.Settings
}

func (i *Item) registered() bool {
	return i.name != "" && i.env.get(i.family, i.name) == i
}

func epoch(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func fromEpoch(f float64) time.Time {
	if f == 0 {
		return time.Time{}
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9))
}
