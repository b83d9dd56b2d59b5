package collection

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/bootforge/internal/convert"
	"github.com/papapumpkin/bootforge/internal/item"
	"github.com/papapumpkin/bootforge/internal/match"
	"github.com/papapumpkin/bootforge/internal/settings"
)

func newRegistry(t *testing.T) (*Registry, *settings.Settings) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := settings.New(settings.Config{Logger: log})
	require.NoError(t, err)
	r := New(Config{Settings: s, Logger: log})
	r.Subscribe(s)
	return r, s
}

func mustAdd(t *testing.T, r *Registry, f item.Family, seed map[string]any) *item.Item {
	t.Helper()
	it, err := r.NewItem(f, seed)
	require.NoError(t, err)
	require.NoError(t, r.Add(it))
	return it
}

func names(items []*item.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

func TestAddGetDuplicate(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	d := mustAdd(t, r, item.Distro, map[string]any{"name": "d"})

	assert.Same(t, d, r.Get(item.Distro, "d"))
	assert.Nil(t, r.Get(item.Profile, "d"))
	assert.Equal(t, 1, r.Len(item.Distro))

	dup, err := r.NewItem(item.Distro, map[string]any{"name": "d"})
	require.NoError(t, err)
	assert.ErrorIs(t, r.Add(dup), ErrDuplicate)
}

func TestEndToEndKernelOptions(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	d := mustAdd(t, r, item.Distro, map[string]any{"name": "D"})
	p1 := mustAdd(t, r, item.Profile, map[string]any{"name": "P1", "distro": "D", "kernel_options": convert.Inherited})
	p2 := mustAdd(t, r, item.Profile, map[string]any{"name": "P2", "parent": "P1"})

	require.NoError(t, d.SetDict(item.FieldKernelOptions, map[string]any{"a": "1"}))
	got, err := p2.KernelOptions()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1"}, got)

	require.NoError(t, p1.SetDict(item.FieldKernelOptions, map[string]any{"b": "2"}))
	got1, err := p1.KernelOptions()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "2"}, got1)
	got2, err := p2.KernelOptions()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1"}, got2)

	// A later distro change reaches the cached sub-profile.
	require.NoError(t, d.SetDict(item.FieldKernelOptions, "a=9"))
	got2, err = p2.KernelOptions()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "9"}, got2)
}

func TestEndToEndDescendantsIncludeSystems(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	d := mustAdd(t, r, item.Distro, map[string]any{"name": "D"})
	mustAdd(t, r, item.Profile, map[string]any{"name": "P1", "distro": "D"})
	mustAdd(t, r, item.Profile, map[string]any{"name": "P2", "parent": "P1"})
	mustAdd(t, r, item.System, map[string]any{"name": "web01", "profile": "P2"})
	mustAdd(t, r, item.System, map[string]any{"name": "db01", "profile": "P1"})

	got, err := d.Descendants()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"profile/P1", "profile/P2", "system/web01", "system/db01"}, names(got))
}

func TestSettingsDefaultsResolve(t *testing.T) {
	t.Parallel()
	r, s := newRegistry(t)
	mustAdd(t, r, item.Distro, map[string]any{"name": "d"})
	p := mustAdd(t, r, item.Profile, map[string]any{"name": "p", "distro": "d"})

	vt, err := p.ResolveString(item.FieldVirtType)
	require.NoError(t, err)
	assert.Equal(t, "kvm", vt)

	owners, err := p.ResolveStrings(item.FieldOwners)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, owners)

	// Settings changes invalidate every cache through the subscription.
	s.Set("default_virt_type", "xen")
	vt, err = p.ResolveString(item.FieldVirtType)
	require.NoError(t, err)
	assert.Equal(t, "xen", vt)

	m, err := p.ToMap(true)
	require.NoError(t, err)
	assert.Equal(t, 512, m["virt_ram"])
}

func TestRemoveOrphanCheck(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	mustAdd(t, r, item.Distro, map[string]any{"name": "d"})
	mustAdd(t, r, item.Profile, map[string]any{"name": "p", "distro": "d"})
	mustAdd(t, r, item.System, map[string]any{"name": "s", "profile": "p"})

	err := r.Remove(item.Distro, "d", false)
	assert.ErrorIs(t, err, ErrWouldOrphan)
	assert.NotNil(t, r.Get(item.Distro, "d"))

	assert.ErrorIs(t, r.Remove(item.Distro, "missing", false), ErrNotFound)

	require.NoError(t, r.Remove(item.System, "s", false))
	assert.Nil(t, r.Get(item.System, "s"))
}

func TestRemoveRecursive(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	mustAdd(t, r, item.Distro, map[string]any{"name": "d"})
	mustAdd(t, r, item.Profile, map[string]any{"name": "p1", "distro": "d"})
	mustAdd(t, r, item.Profile, map[string]any{"name": "p2", "parent": "p1"})
	mustAdd(t, r, item.System, map[string]any{"name": "s", "profile": "p2"})
	mustAdd(t, r, item.Distro, map[string]any{"name": "other"})

	require.NoError(t, r.Remove(item.Distro, "d", true))
	for _, f := range []item.Family{item.Profile, item.System} {
		assert.Zero(t, r.Len(f), "%s left behind", f.Plural())
	}
	assert.Nil(t, r.Get(item.Distro, "d"))
	assert.NotNil(t, r.Get(item.Distro, "other"))
}

func TestRename(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	mustAdd(t, r, item.Repo, map[string]any{"name": "base"})
	mustAdd(t, r, item.Distro, map[string]any{"name": "d"})
	mustAdd(t, r, item.Profile, map[string]any{"name": "p1", "distro": "d", "repos": "base"})
	p2 := mustAdd(t, r, item.Profile, map[string]any{"name": "p2", "parent": "p1"})
	s := mustAdd(t, r, item.System, map[string]any{"name": "s", "profile": "p1"})

	require.NoError(t, r.Rename(item.Profile, "p1", "gold"))
	assert.Nil(t, r.Get(item.Profile, "p1"))
	require.NotNil(t, r.Get(item.Profile, "gold"))
	assert.Equal(t, "gold", p2.ParentName())
	assert.Equal(t, "gold", s.ReferenceName(item.FieldProfile))

	require.NoError(t, r.Rename(item.Repo, "base", "os"))
	repos, _ := r.Get(item.Profile, "gold").Reference(item.FieldRepos)
	assert.Equal(t, []string{"os"}, repos)

	mustAdd(t, r, item.Profile, map[string]any{"name": "taken"})
	assert.ErrorIs(t, r.Rename(item.Profile, "gold", "taken"), ErrDuplicate)
}

func TestFindStrict(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	mustAdd(t, r, item.Distro, map[string]any{"name": "rhel9"})
	mustAdd(t, r, item.Distro, map[string]any{"name": "rhel8"})
	mustAdd(t, r, item.Distro, map[string]any{"name": "sles15"})

	got, err := r.Find(item.Distro, match.Where("name", "rhel*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"distro/rhel8", "distro/rhel9"}, names(got))

	got, err = r.Find(item.Distro, match.Where("name", "~rhel*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"distro/sles15"}, names(got))

	got, err = r.Find(item.Distro, match.Where("flavour", "x"))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = r.FindStrict(item.Distro, match.Where("flavour", "x"), true)
	assert.True(t, errors.Is(err, match.ErrUnknownField), "err = %v", err)
}

func TestConcurrentReadsDuringMutate(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	d := mustAdd(t, r, item.Distro, map[string]any{"name": "d"})
	p := mustAdd(t, r, item.Profile, map[string]any{"name": "p", "distro": "d"})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = r.Mutate(func(tx *Tx) error {
				if err := d.SetDict(item.FieldKernelOptions, map[string]any{"n": n}); err != nil {
					return err
				}
				_, err := p.KernelOptions()
				return err
			})
		}(i)
	}
	wg.Wait()

	got, err := p.KernelOptions()
	require.NoError(t, err)
	assert.Contains(t, got, "n")
}
