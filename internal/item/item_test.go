package item

import (
	"errors"
	"reflect"
	"testing"

	"github.com/papapumpkin/bootforge/internal/convert"
	"github.com/papapumpkin/bootforge/internal/match"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	p := w.add(t, Profile, map[string]any{"name": "p"})

	if len(p.UID()) != 32 {
		t.Errorf("UID = %q, want 32 hex chars", p.UID())
	}
	if v, _ := p.Raw(FieldVirtRAM); !convert.IsInherited(v) {
		t.Errorf("Raw(virt_ram) = %v, want inherit sentinel", v)
	}
	if v, _ := p.Raw(FieldKernelOptions); !reflect.DeepEqual(v, map[string]any{}) {
		t.Errorf("Raw(kernel_options) = %v, want empty dict", v)
	}
	if p.Depth() != 0 || p.ParentName() != "" {
		t.Errorf("depth/parent = %d/%q, want 0/\"\"", p.Depth(), p.ParentName())
	}
}

func TestFromMapValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		seed map[string]any
		want error
	}{
		{name: "depth as string", seed: map[string]any{"name": "x", "depth": "3"}, want: ErrTypeValidation},
		{name: "subobject as string", seed: map[string]any{"name": "x", "is_subobject": "yes"}, want: ErrTypeValidation},
		{name: "unknown key", seed: map[string]any{"name": "x", "colour": "red"}, want: ErrUnknownField},
		{name: "missing distro", seed: map[string]any{"name": "x", "distro": "nope"}, want: ErrReferenceNotFound},
		{name: "bad kernel options", seed: map[string]any{"name": "x", "kernel_options": 42}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := newWorld(t)
			_, err := New(w.env, Profile, tt.seed)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBadKernelOptionsMessage(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	p := w.add(t, Profile, map[string]any{"name": "p"})
	err := p.SetDict(FieldKernelOptions, 42)
	var ve *ValueError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValueError", err)
	}
	if ve.Message != "invalid kernel value" {
		t.Errorf("Message = %q", ve.Message)
	}
	var ce *convert.ConversionError
	if !errors.As(err, &ce) {
		t.Errorf("err does not wrap *convert.ConversionError: %v", err)
	}
}

func TestSetUIDImmutable(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	p := w.add(t, Profile, map[string]any{"name": "p", "uid": "abc"})
	if err := p.SetUID("abc"); err != nil {
		t.Errorf("re-setting same uid: %v", err)
	}
	if err := p.SetUID("def"); !errors.Is(err, ErrImmutable) {
		t.Errorf("err = %v, want ErrImmutable", err)
	}
	if p.UID() != "abc" {
		t.Errorf("UID = %q, want abc", p.UID())
	}
}

func TestSetParent(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	p1 := w.add(t, Profile, map[string]any{"name": "p1"})
	p2 := w.add(t, Profile, map[string]any{"name": "p2", "parent": "p1"})
	p3 := w.add(t, Profile, map[string]any{"name": "p3", "parent": "p2"})

	if p2.Depth() != 1 || p3.Depth() != 2 {
		t.Fatalf("depths = %d/%d, want 1/2", p2.Depth(), p3.Depth())
	}

	for _, bad := range []string{"p3", "nonexistent"} {
		err := p3.SetParent(bad)
		if !errors.Is(err, ErrInvalidParent) {
			t.Errorf("SetParent(%q) = %v, want ErrInvalidParent", bad, err)
		}
		if p3.ParentName() != "p2" {
			t.Errorf("ParentName after rejected %q = %q", bad, p3.ParentName())
		}
	}

	if err := p1.SetParent("p3"); !errors.Is(err, ErrCycle) {
		t.Errorf("closing a cycle: err = %v, want ErrCycle", err)
	}

	if err := p2.SetParent(""); err != nil {
		t.Fatal(err)
	}
	if p2.Depth() != 0 || p3.Depth() != 1 {
		t.Errorf("after detach depths = %d/%d, want 0/1", p2.Depth(), p3.Depth())
	}
}

func TestSetParentRefreshesDescendantSnapshots(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	w.add(t, Profile, map[string]any{"name": "r1"})
	w.add(t, Profile, map[string]any{"name": "x"})
	w.add(t, Profile, map[string]any{"name": "r2", "parent": "x"})
	a := w.add(t, Profile, map[string]any{"name": "a", "parent": "r1"})
	c := w.add(t, Profile, map[string]any{"name": "c", "parent": "a"})

	before, err := c.ToMap(false)
	if err != nil {
		t.Fatal(err)
	}
	if before["depth"] != 2 {
		t.Fatalf("raw depth before = %v, want 2", before["depth"])
	}

	if err := a.SetParent("r2"); err != nil {
		t.Fatal(err)
	}
	if c.Depth() != 3 {
		t.Fatalf("c.Depth = %d, want 3", c.Depth())
	}
	after, err := c.ToMap(false)
	if err != nil {
		t.Fatal(err)
	}
	if after["depth"] != 3 {
		t.Errorf("raw depth after = %v, want 3", after["depth"])
	}
}

func TestDepthIsDerivedFromParent(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	w.add(t, Profile, map[string]any{"name": "r", "depth": 4})
	c := w.add(t, Profile, map[string]any{"name": "c", "parent": "r", "depth": 7})

	if r := w.Get(Profile, "r"); r.Depth() != 0 {
		t.Errorf("root depth = %d, want 0", r.Depth())
	}
	if c.Depth() != 1 {
		t.Errorf("child depth = %d, want 1", c.Depth())
	}
	if err := c.SetDepth(5); err != nil {
		t.Fatal(err)
	}
	if c.Depth() != 1 {
		t.Errorf("after SetDepth(5) depth = %d, want 1", c.Depth())
	}
}

func TestSetParentUnsupportedFamily(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	w.add(t, Distro, map[string]any{"name": "a"})
	b := w.add(t, Distro, map[string]any{"name": "b"})
	if err := b.SetParent("a"); !errors.Is(err, ErrInvalidParent) {
		t.Errorf("err = %v, want ErrInvalidParent", err)
	}
}

func TestSystemProfileImageExclusive(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	w.add(t, Profile, map[string]any{"name": "p"})
	w.add(t, Image, map[string]any{"name": "img"})
	s := w.add(t, System, map[string]any{"name": "s", "profile": "p"})

	if err := s.SetReference(FieldImage, "img"); err != nil {
		t.Fatal(err)
	}
	if s.ReferenceName(FieldProfile) != "" || s.ReferenceName(FieldImage) != "img" {
		t.Errorf("profile/image = %q/%q", s.ReferenceName(FieldProfile), s.ReferenceName(FieldImage))
	}
}

func TestInterfacesMatch(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	w.add(t, Profile, map[string]any{"name": "p"})
	s := w.add(t, System, map[string]any{
		"name":    "s",
		"profile": "p",
		"interfaces": map[string]any{
			"eth0": map[string]any{"mac_address": "AA:BB:CC:00:11:22", "static": true},
		},
	})

	tests := []struct {
		field, pattern string
		want           bool
	}{
		{"mac_address", "aa:bb:*", true},
		{"mac_address", "eth0", true},
		{"mac_address", "ff:*", false},
		{"name", "s", true},
	}
	for _, tt := range tests {
		got, err := s.Match(match.Where(tt.field, tt.pattern), false)
		if err != nil {
			t.Fatalf("Match(%s=%s): %v", tt.field, tt.pattern, err)
		}
		if got != tt.want {
			t.Errorf("Match(%s=%s) = %v, want %v", tt.field, tt.pattern, got, tt.want)
		}
	}
	if names := s.Interfaces(); !reflect.DeepEqual(names, []string{"eth0"}) {
		t.Errorf("Interfaces = %v", names)
	}
}

func TestToMapViews(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	w.values["virt_ram"] = 512
	p := w.add(t, Profile, map[string]any{"name": "p"})

	raw, err := p.ToMap(false)
	if err != nil {
		t.Fatal(err)
	}
	if raw["virt_ram"] != convert.Inherited {
		t.Errorf("raw virt_ram = %v", raw["virt_ram"])
	}

	// Unset scalars without settings or defaults make the resolved view fail.
	if _, err := p.ToMap(true); err == nil {
		t.Fatal("expected resolution error for unset scalars")
	}
	zero := map[ValueType]any{TypeString: "", TypeBool: false, TypeInt: 0, TypeFloat: 0.0, TypeList: []string{}}
	for _, def := range Inheritables() {
		if def.Kind == KindScalar && def.Name != FieldVirtRAM {
			w.values[def.Setting] = zero[def.Type]
		}
	}
	resolved, err := p.ToMap(true)
	if err != nil {
		t.Fatal(err)
	}
	if resolved["virt_ram"] != 512 {
		t.Errorf("resolved virt_ram = %v, want 512", resolved["virt_ram"])
	}
}
