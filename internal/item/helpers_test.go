package item

import (
	"sort"
	"testing"

	"github.com/papapumpkin/bootforge/internal/match"
)

// world is an in-memory Lookup and Settings pair for tests.
type world struct {
	items    map[Family][]*Item
	values   map[string]any
	cache    bool
	env      *Env
	loadMaps map[string]map[string]any
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		items:    make(map[Family][]*Item),
		values:   map[string]any{},
		cache:    true,
		loadMaps: map[string]map[string]any{},
	}
	w.env = &Env{Lookup: w, Settings: settingsView{w}, Loader: w}
	return w
}

func (w *world) Get(f Family, name string) *Item {
	for _, it := range w.items[f] {
		if it.Name() == name {
			return it
		}
	}
	return nil
}

func (w *world) Items(f Family) []*Item {
	out := append([]*Item(nil), w.items[f]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (w *world) Find(f Family, c match.Criteria) ([]*Item, error) {
	var out []*Item
	for _, it := range w.Items(f) {
		ok, err := it.Match(c, false)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (w *world) Load(it *Item) (map[string]any, error) {
	return w.loadMaps[it.String()], nil
}

func (w *world) add(t *testing.T, f Family, seed map[string]any) *Item {
	t.Helper()
	it, err := New(w.env, f, seed)
	if err != nil {
		t.Fatalf("New(%s, %v): %v", f, seed, err)
	}
	w.items[f] = append(w.items[f], it)
	return it
}

func (w *world) stub(t *testing.T, f Family, full map[string]any) *Item {
	t.Helper()
	it, err := NewStub(w.env, f, full)
	if err != nil {
		t.Fatalf("NewStub(%s): %v", f, err)
	}
	w.loadMaps[it.String()] = full
	w.items[f] = append(w.items[f], it)
	return it
}

// settingsView exposes the world's values as Settings; Lookup already owns Get.
type settingsView struct{ w *world }

func (s settingsView) Get(name string) (any, bool) {
	v, ok := s.w.values[name]
	return v, ok
}

func (s settingsView) CacheEnabled() bool { return s.w.cache }
