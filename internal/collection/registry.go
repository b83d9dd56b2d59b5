// Package collection holds the live family collections items resolve
// against. A Registry is the Lookup every item's Env points at.
package collection

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/papapumpkin/bootforge/internal/item"
	"github.com/papapumpkin/bootforge/internal/match"
	"github.com/papapumpkin/bootforge/internal/metrics"
	"github.com/papapumpkin/bootforge/internal/telemetry"
)

// Sentinel errors for collection operations.
var (
	// ErrNotFound indicates no item of that family has the name.
	ErrNotFound = errors.New("item not found")
	// ErrDuplicate indicates an item of that family already has the name.
	ErrDuplicate = errors.New("item already exists")
	// ErrWouldOrphan indicates a non-recursive removal of a referenced item.
	ErrWouldOrphan = errors.New("removal would orphan dependents")
)

// Config configures a Registry.
type Config struct {
	Settings item.Settings
	Loader   item.Loader
	Logger   *logrus.Logger
	Events   *telemetry.Emitter
}

// Registry is the set of family collections. Reads take a short shared
// lock and never call into items while holding it, so item code may look
// items up freely. Writers are serialized through Mutate.
type Registry struct {
	mu    sync.RWMutex
	items map[item.Family]map[string]*item.Item

	write sync.Mutex

	env *item.Env
	log *logrus.Logger
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetOutput(io.Discard)
	}
	r := &Registry{
		items: make(map[item.Family]map[string]*item.Item, len(item.Families)),
		log:   cfg.Logger,
	}
	for _, f := range item.Families {
		r.items[f] = make(map[string]*item.Item)
	}
	r.env = &item.Env{
		Lookup:   r,
		Settings: cfg.Settings,
		Loader:   cfg.Loader,
		Log:      cfg.Logger,
		Events:   cfg.Events,
	}
	return r
}

// Env returns the environment items of this registry are built with.
func (r *Registry) Env() *item.Env { return r.env }

// NewItem builds a materialized item bound to this registry. It is not
// added.
func (r *Registry) NewItem(f item.Family, seed map[string]any) (*item.Item, error) {
	return item.New(r.env, f, seed)
}

// NewStub builds a lazy item bound to this registry. It is not added.
func (r *Registry) NewStub(f item.Family, seed map[string]any) (*item.Item, error) {
	return item.NewStub(r.env, f, seed)
}

// Get returns the item of family f named name, or nil.
func (r *Registry) Get(f item.Family, name string) *item.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items[f][name]
}

// Items returns every item of family f sorted by name.
func (r *Registry) Items(f item.Family) []*item.Item {
	r.mu.RLock()
	out := make([]*item.Item, 0, len(r.items[f]))
	for _, it := range r.items[f] {
		out = append(out, it)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of items of family f.
func (r *Registry) Len(f item.Family) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items[f])
}

// Find returns the items of family f matching criteria. Unknown fields do
// not match.
func (r *Registry) Find(f item.Family, criteria match.Criteria) ([]*item.Item, error) {
	return r.FindStrict(f, criteria, false)
}

// FindStrict is Find with control over unknown fields: with strict set they
// fail with match.ErrUnknownField.
func (r *Registry) FindStrict(f item.Family, criteria match.Criteria, strict bool) ([]*item.Item, error) {
	var out []*item.Item
	for _, it := range r.Items(f) {
		ok, err := it.Match(criteria, strict)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", f.Plural(), err)
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// InvalidateAll drops every item's resolved values. Settings changes call
// it since settings are the root of every chain.
func (r *Registry) InvalidateAll() {
	n := 0
	for _, f := range item.Families {
		for _, it := range r.Items(f) {
			it.InvalidateResolved()
			metrics.CacheInvalidationsTotal.WithLabelValues(f.String(), "all").Inc()
			n++
		}
	}
	r.log.WithFields(logrus.Fields{"items": n}).Debug("invalidated all caches")
}

// Subscribe invalidates every cache whenever n reports a change.
func (r *Registry) Subscribe(n interface{ OnChange(func()) }) {
	n.OnChange(r.InvalidateAll)
}

// Tx is the write handle passed to Mutate.
type Tx struct {
	r *Registry
}

// Mutate runs fn with exclusive write access. Item setters called from fn
// are serialized with every other writer.
func (r *Registry) Mutate(fn func(tx *Tx) error) error {
	r.write.Lock()
	defer r.write.Unlock()
	return fn(&Tx{r: r})
}

// Add inserts it; see Tx.Add.
func (r *Registry) Add(it *item.Item) error {
	return r.Mutate(func(tx *Tx) error { return tx.Add(it) })
}

// Remove deletes an item; see Tx.Remove.
func (r *Registry) Remove(f item.Family, name string, recursive bool) error {
	return r.Mutate(func(tx *Tx) error { return tx.Remove(f, name, recursive) })
}

// Rename renames an item; see Tx.Rename.
func (r *Registry) Rename(f item.Family, oldName, newName string) error {
	return r.Mutate(func(tx *Tx) error { return tx.Rename(f, oldName, newName) })
}

// Add inserts it. Names are unique per family.
func (tx *Tx) Add(it *item.Item) error {
	r := tx.r
	f := it.Family()
	if it.Name() == "" {
		return fmt.Errorf("add %s: %w: empty name", f, item.ErrTypeValidation)
	}
	r.mu.Lock()
	if _, ok := r.items[f][it.Name()]; ok {
		r.mu.Unlock()
		return fmt.Errorf("add %s %q: %w", f, it.Name(), ErrDuplicate)
	}
	r.items[f][it.Name()] = it
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"family": f.String(), "item": it.Name()}).Debug("item added")
	r.emit(telemetry.KindItemAdded, it, nil)
	return nil
}

// removalRank orders a recursive removal so dependents go before what they
// reference.
var removalRank = map[item.Family]int{
	item.System:  0,
	item.Image:   1,
	item.Profile: 2,
	item.Menu:    3,
	item.Distro:  4,
	item.Repo:    5,
}

// Remove deletes the named item. Without recursive it fails with
// ErrWouldOrphan while anything references the item; with recursive every
// descendant is removed first, deepest dependents leading.
func (tx *Tx) Remove(f item.Family, name string, recursive bool) error {
	r := tx.r
	it := r.Get(f, name)
	if it == nil {
		return fmt.Errorf("remove %s %q: %w", f, name, ErrNotFound)
	}

	if !recursive {
		refs, err := r.directDependents(it)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			return fmt.Errorf("remove %s %q: %w: %s", f, name, ErrWouldOrphan, refs[0])
		}
		r.delete(it)
		return nil
	}

	kids, err := it.Descendants()
	if err != nil {
		return fmt.Errorf("remove %s %q: %w", f, name, err)
	}
	sort.SliceStable(kids, func(i, j int) bool {
		ri, rj := removalRank[kids[i].Family()], removalRank[kids[j].Family()]
		if ri != rj {
			return ri < rj
		}
		return kids[i].Depth() > kids[j].Depth()
	})
	for _, k := range kids {
		if k == it {
			continue
		}
		r.delete(k)
	}
	r.delete(it)
	return nil
}

// Rename gives an item a new name and repoints every item that referenced
// the old one.
func (tx *Tx) Rename(f item.Family, oldName, newName string) error {
	r := tx.r
	it := r.Get(f, oldName)
	if it == nil {
		return fmt.Errorf("rename %s %q: %w", f, oldName, ErrNotFound)
	}
	if oldName == newName {
		return nil
	}
	if r.Get(f, newName) != nil {
		return fmt.Errorf("rename %s %q: %w: %s", f, oldName, ErrDuplicate, newName)
	}

	type link struct {
		it    *item.Item
		field item.Field
	}
	var links []link
	for _, dep := range item.Dependents(f) {
		found, err := r.Find(dep.Family, match.Where(string(dep.Field), oldName))
		if err != nil {
			return err
		}
		for _, d := range found {
			links = append(links, link{d, dep.Field})
		}
	}

	if err := it.SetName(newName); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.items[f], oldName)
	r.items[f][newName] = it
	r.mu.Unlock()

	for _, l := range links {
		var err error
		switch l.field {
		case item.FieldParent:
			err = l.it.SetParent(newName)
		case item.FieldRepos:
			v, _ := l.it.Reference(item.FieldRepos)
			repos, _ := v.([]string)
			for i, n := range repos {
				if n == oldName {
					repos[i] = newName
				}
			}
			err = l.it.SetReference(item.FieldRepos, repos)
		default:
			err = l.it.SetReference(l.field, newName)
		}
		if err != nil {
			return fmt.Errorf("rename %s %q: repoint %s: %w", f, oldName, l.it, err)
		}
	}
	r.log.WithFields(logrus.Fields{"family": f.String(), "from": oldName, "to": newName}).Info("item renamed")
	return nil
}

func (r *Registry) directDependents(it *item.Item) ([]string, error) {
	var out []string
	for _, dep := range item.Dependents(it.Family()) {
		found, err := r.Find(dep.Family, match.Where(string(dep.Field), it.Name()))
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			if d != it {
				out = append(out, d.String())
			}
		}
	}
	return out, nil
}

func (r *Registry) delete(it *item.Item) {
	r.mu.Lock()
	if r.items[it.Family()][it.Name()] == it {
		delete(r.items[it.Family()], it.Name())
	}
	r.mu.Unlock()
	it.CleanCache()
	r.log.WithFields(logrus.Fields{"family": it.Family().String(), "item": it.Name()}).Debug("item removed")
	r.emit(telemetry.KindItemRemoved, it, nil)
}

func (r *Registry) emit(kind string, it *item.Item, data any) {
	if err := r.env.Events.Emit(telemetry.Event{
		Timestamp: time.Now(),
		Kind:      kind,
		Family:    it.Family().String(),
		Item:      it.Name(),
		Data:      data,
	}); err != nil {
		r.log.Warnf("telemetry: %v", err)
	}
}
