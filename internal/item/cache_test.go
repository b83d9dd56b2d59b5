package item

import (
	"bytes"
	"strings"
	"testing"

	"github.com/papapumpkin/bootforge/internal/telemetry"
)

func TestCacheReadThrough(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	w.values["default_virt_type"] = "kvm"
	p := w.add(t, Profile, map[string]any{"name": "p"})

	if p.CacheState() != CacheEmpty {
		t.Fatalf("fresh item cache = %s", p.CacheState())
	}
	if _, err := p.Resolve(FieldVirtType); err != nil {
		t.Fatal(err)
	}
	if p.CacheState() != CachePopulated {
		t.Fatalf("after resolve cache = %s", p.CacheState())
	}

	// A hit ignores settings changes until something invalidates.
	w.values["default_virt_type"] = "xen"
	if got, _ := p.ResolveString(FieldVirtType); got != "kvm" {
		t.Errorf("cached value = %q, want kvm", got)
	}
	p.CleanCache()
	if got, _ := p.ResolveString(FieldVirtType); got != "xen" {
		t.Errorf("after clean = %q, want xen", got)
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	d := w.add(t, Distro, map[string]any{"name": "d", "kernel_options": "a=1"})

	first, _ := d.KernelOptions()
	first["a"] = "mutated"
	second, _ := d.KernelOptions()
	if second["a"] != "1" {
		t.Errorf("cached dict was mutated through a returned value: %v", second)
	}
}

func TestCacheInvalidationCascades(t *testing.T) {
	t.Parallel()
	_, m := tree(t)
	unrelated := m["img"]

	for _, name := range []string{"p1", "p2", "p3", "s1", "img", "s2"} {
		if _, err := m[name].KernelOptions(); err != nil {
			t.Fatal(err)
		}
	}

	if err := m["p1"].SetDict(FieldKernelOptions, "x=1"); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"p1", "p2", "p3", "s1"} {
		if st := m[name].CacheState(); st != CacheEmpty {
			t.Errorf("%s cache = %s, want empty", name, st)
		}
	}
	for _, it := range []*Item{unrelated, m["s2"]} {
		if st := it.CacheState(); st != CachePopulated {
			t.Errorf("%s cache = %s, want populated", it.Name(), st)
		}
	}

	got, _ := m["p1"].KernelOptions()
	if got["x"] != "1" {
		t.Errorf("p1 kernel_options = %v, want x=1", got)
	}
}

func TestCacheNonCascadingField(t *testing.T) {
	t.Parallel()
	_, m := tree(t)
	if _, err := m["p2"].KernelOptions(); err != nil {
		t.Fatal(err)
	}
	if err := m["p1"].SetComment("just a note"); err != nil {
		t.Fatal(err)
	}
	if m["p2"].CacheState() != CachePopulated {
		t.Error("comment change invalidated a descendant")
	}
}

func TestCacheDisabled(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	w.cache = false
	w.values["default_virt_type"] = "kvm"
	p := w.add(t, Profile, map[string]any{"name": "p"})

	if _, err := p.Resolve(FieldVirtType); err != nil {
		t.Fatal(err)
	}
	if p.CacheState() != CacheEmpty {
		t.Errorf("cache = %s with caching disabled", p.CacheState())
	}
	w.values["default_virt_type"] = "xen"
	if got, _ := p.ResolveString(FieldVirtType); got != "xen" {
		t.Errorf("uncached read = %q, want xen", got)
	}
}

func TestCacheInvalidationEmitsEvent(t *testing.T) {
	t.Parallel()
	w, m := tree(t)
	var buf bytes.Buffer
	w.env.Events = telemetry.NewEmitterWriter(&buf)

	if err := m["d"].SetDict(FieldKernelOptions, "a=1"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"kind":"cache_invalidated"`) {
		t.Errorf("missing cache_invalidated event in %s", out)
	}
	if !strings.Contains(out, `"kind":"item_changed"`) {
		t.Errorf("missing item_changed event in %s", out)
	}
}

func TestCacheDropsValueComputedAcrossInvalidation(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	w.values["default_virt_type"] = "kvm"
	p := w.add(t, Profile, map[string]any{"name": "p"})

	// A settings reload lands while the value is being computed.
	v, err := p.cachedField(FieldVirtType, "scalar", func() (any, error) {
		w.values["default_virt_type"] = "xen"
		p.InvalidateResolved()
		return "kvm", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != "kvm" {
		t.Errorf("computed value = %v, want kvm", v)
	}
	if p.CacheState() != CacheEmpty {
		t.Errorf("stale value was cached: state = %s", p.CacheState())
	}
	if got, _ := p.ResolveString(FieldVirtType); got != "xen" {
		t.Errorf("after reload = %q, want xen", got)
	}
}
