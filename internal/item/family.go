package item

import (
	"fmt"
	"strings"
)

// Family is the category of an item. It selects the collection the item
// lives in and the inheritance rules that apply to it.
type Family int

// Item families, in the order their collections are loaded.
const (
	Repo Family = iota
	Distro
	Menu
	Profile
	Image
	System
)

// Families lists every family in load order.
var Families = []Family{Repo, Distro, Menu, Profile, Image, System}

var familyNames = map[Family]string{
	Repo:    "repo",
	Distro:  "distro",
	Menu:    "menu",
	Profile: "profile",
	Image:   "image",
	System:  "system",
}

// String returns the singular family name, as used in collection lookups.
func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// Plural returns the collection name ("profiles").
func (f Family) Plural() string {
	return f.String() + "s"
}

// ParseFamily accepts a singular or plural family name.
func ParseFamily(s string) (Family, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for f, n := range familyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown item family %q", s)
}

// Dependency names a family whose items reference another item by name in Field.
type Dependency struct {
	Family Family
	Field  Field
}

// dependencies maps a family to the (family, field) pairs that reference
// its items. It drives descendant computation and cache invalidation.
var dependencies = map[Family][]Dependency{
	Repo:    {{Profile, FieldRepos}},
	Distro:  {{Profile, FieldDistro}},
	Menu:    {{Menu, FieldParent}, {Image, FieldMenu}, {Profile, FieldMenu}},
	Profile: {{Profile, FieldParent}, {System, FieldProfile}},
	Image:   {{System, FieldImage}},
	System:  nil,
}

// Dependents returns the (family, field) pairs that reference items of f.
func Dependents(f Family) []Dependency {
	return dependencies[f]
}

// Level is one step of the logical hierarchy: the family at that level and
// the reference field used to reach it.
type Level struct {
	Family Family
	Field  Field
}

type hierarchy struct {
	previous []Level // conceptual ancestors, in lookup order
	next     []Level // families that point at this one
}

// logicalInheritance is the cross-family hierarchy. A family's previous
// levels are tried in order when its same-family parent chain is exhausted.
var logicalInheritance = map[Family]hierarchy{
	Distro:  {next: []Level{{Profile, FieldDistro}}},
	Profile: {previous: []Level{{Distro, FieldDistro}}, next: []Level{{System, FieldProfile}}},
	Image:   {next: []Level{{System, FieldImage}}},
	System:  {previous: []Level{{Image, FieldImage}, {Profile, FieldProfile}}},
}

// PreviousLevels returns the conceptual ancestor levels of f.
func PreviousLevels(f Family) []Level {
	return logicalInheritance[f].previous
}

// NextLevels returns the families that conceptually inherit from f.
func NextLevels(f Family) []Level {
	return logicalInheritance[f].next
}

// familySpec statically declares what a family supports.
type familySpec struct {
	sameTypeParent bool
	references     []Field
	scalars        []Field
	interfaces     bool
}

var virtScalars = []Field{
	FieldVirtAutoBoot, FieldVirtBridge, FieldVirtCPUs, FieldVirtFileSize, FieldVirtRAM, FieldVirtType,
}

var bootScalars = []Field{
	FieldServer, FieldNextServerV4, FieldNextServerV6, FieldProxy, FieldEnableIPXE, FieldEnableMenu,
	FieldNameServers, FieldNameServersSearch, FieldAutoinstall,
}

var families = map[Family]familySpec{
	Repo: {
		scalars: []Field{FieldOwners},
	},
	Distro: {
		scalars: []Field{FieldOwners, FieldBootLoaders},
	},
	Menu: {
		sameTypeParent: true,
		scalars:        []Field{FieldOwners},
	},
	Profile: {
		sameTypeParent: true,
		references:     []Field{FieldDistro, FieldMenu, FieldRepos},
		scalars:        concat([]Field{FieldOwners, FieldBootLoaders}, bootScalars, virtScalars),
	},
	Image: {
		references: []Field{FieldMenu},
		scalars:    concat([]Field{FieldOwners, FieldBootLoaders}, virtScalars),
	},
	System: {
		references: []Field{FieldProfile, FieldImage},
		scalars:    concat([]Field{FieldOwners, FieldBootLoaders}, bootScalars, virtScalars),
		interfaces: true,
	},
}

func concat(groups ...[]Field) []Field {
	var out []Field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// SupportsParent reports whether items of f may have a same-family parent.
func (f Family) SupportsParent() bool {
	return families[f].sameTypeParent
}

// References returns the reference fields items of f carry.
func (f Family) References() []Field {
	return families[f].references
}

// Supports reports whether items of f carry the inheritable field.
func (f Family) Supports(field Field) bool {
	def, ok := inheritables[field]
	if !ok {
		return false
	}
	if def.Kind == KindDict {
		return true
	}
	for _, s := range families[f].scalars {
		if s == field {
			return true
		}
	}
	return false
}

// InheritableFields returns every inheritable field items of f carry, dicts first.
func (f Family) InheritableFields() []Field {
	out := append([]Field(nil), dictFields...)
	return append(out, families[f].scalars...)
}

func (f Family) hasInterfaces() bool {
	return families[f].interfaces
}

func (f Family) hasReference(field Field) bool {
	for _, r := range families[f].references {
		if r == field {
			return true
		}
	}
	return false
}

// referenceTarget returns the family a reference field points at.
func referenceTarget(field Field) (Family, bool) {
	switch field {
	case FieldDistro:
		return Distro, true
	case FieldMenu:
		return Menu, true
	case FieldRepos:
		return Repo, true
	case FieldProfile:
		return Profile, true
	case FieldImage:
		return Image, true
	}
	return 0, false
}

// ReferenceTarget returns the family a reference field of f points at.
func (f Family) ReferenceTarget(field Field) (Family, bool) {
	if !f.hasReference(field) {
		return 0, false
	}
	return referenceTarget(field)
}
