package inventory

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/papapumpkin/bootforge/internal/collection"
	"github.com/papapumpkin/bootforge/internal/convert"
	"github.com/papapumpkin/bootforge/internal/item"
	"github.com/papapumpkin/bootforge/internal/telemetry"
)

// Source serves the full attribute maps of lazily loaded items. It is the
// registry's item.Loader.
type Source struct {
	mu      sync.RWMutex
	entries map[string]map[string]any
}

// NewSource creates an empty Source.
func NewSource() *Source {
	return &Source{entries: make(map[string]map[string]any)}
}

// Load returns a copy of the entry it was seeded from.
func (s *Source) Load(it *item.Item) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.entries[it.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInInventory, it)
	}
	return convert.CloneDict(m), nil
}

func (s *Source) replace(entries []Entry) {
	next := make(map[string]map[string]any, len(entries))
	for _, e := range entries {
		next[e.Key()] = convert.CloneDict(e.Fields)
	}
	s.mu.Lock()
	s.entries = next
	s.mu.Unlock()
}

// Config configures an Inventory.
type Config struct {
	Settings item.Settings
	// Lazy registers stubs that load their full entry on first access.
	Lazy   bool
	Logger *logrus.Logger
	Events *telemetry.Emitter
}

// Inventory keeps a registry in step with an inventory document.
type Inventory struct {
	reg    *collection.Registry
	src    *Source
	lazy   bool
	log    *logrus.Logger
	events *telemetry.Emitter

	mu      sync.Mutex
	applied []Entry
}

// New creates an Inventory over a fresh registry.
func New(cfg Config) *Inventory {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetOutput(io.Discard)
	}
	src := NewSource()
	reg := collection.New(collection.Config{
		Settings: cfg.Settings,
		Loader:   src,
		Logger:   cfg.Logger,
		Events:   cfg.Events,
	})
	if n, ok := cfg.Settings.(interface{ OnChange(func()) }); ok {
		reg.Subscribe(n)
	}
	return &Inventory{
		reg:    reg,
		src:    src,
		lazy:   cfg.Lazy,
		log:    cfg.Logger,
		events: cfg.Events,
	}
}

// Registry returns the registry the inventory loads into.
func (inv *Inventory) Registry() *collection.Registry { return inv.reg }

// Apply loads doc into the registry. It is Sync against whatever was
// applied before, so the first call creates every item.
func (inv *Inventory) Apply(doc *Document) (Diff, error) {
	return inv.Sync(doc)
}

// Sync reconciles the registry with doc. New entries are created, changed
// entries are updated through the item setters so cache invalidation
// cascades, and vanished entries are removed along with their dependents.
// The document is planned before anything is touched; a setter failure
// part way leaves earlier changes applied.
func (inv *Inventory) Sync(doc *Document) (Diff, error) {
	entries, err := doc.Entries()
	if err != nil {
		return Diff{}, err
	}
	planned, err := Plan(entries)
	if err != nil {
		return Diff{}, err
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	diff := Compare(inv.applied, planned)

	err = inv.reg.Mutate(func(tx *collection.Tx) error {
		// Stubs are materialized from the old entries before they change
		// or disappear.
		for _, e := range append(append([]Entry(nil), diff.Changed...), diff.Removed...) {
			if it := inv.reg.Get(e.Family, e.Name); it != nil && !it.InMemory() {
				if err := it.Deserialize(); err != nil {
					return err
				}
			}
		}
		inv.src.replace(planned)

		previous := make(map[string]Entry, len(inv.applied))
		for _, e := range inv.applied {
			previous[e.Key()] = e
		}
		changed := make(map[string]bool, len(diff.Changed))
		for _, e := range diff.Changed {
			changed[e.Key()] = true
		}
		added := make(map[string]bool, len(diff.Added))
		for _, e := range diff.Added {
			added[e.Key()] = true
		}

		for _, e := range planned {
			switch {
			case added[e.Key()]:
				if err := inv.create(tx, e); err != nil {
					return err
				}
			case changed[e.Key()]:
				if err := inv.update(e, previous[e.Key()]); err != nil {
					return err
				}
			}
		}

		for i := len(diff.Removed) - 1; i >= 0; i-- {
			e := diff.Removed[i]
			if inv.reg.Get(e.Family, e.Name) == nil {
				continue
			}
			if err := tx.Remove(e.Family, e.Name, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return diff, fmt.Errorf("sync inventory: %w", err)
	}
	inv.applied = planned

	inv.log.WithFields(logrus.Fields{
		"added":   len(diff.Added),
		"changed": len(diff.Changed),
		"removed": len(diff.Removed),
		"lazy":    inv.lazy,
	}).Info("inventory synced")
	if err := inv.events.Emit(telemetry.Event{
		Timestamp: time.Now(),
		Kind:      telemetry.KindInventorySynced,
		Data: map[string]int{
			"added":   len(diff.Added),
			"changed": len(diff.Changed),
			"removed": len(diff.Removed),
		},
	}); err != nil {
		inv.log.Warnf("telemetry: %v", err)
	}
	return diff, nil
}

func (inv *Inventory) create(tx *collection.Tx, e Entry) error {
	var (
		it  *item.Item
		err error
	)
	if inv.lazy {
		it, err = inv.reg.NewStub(e.Family, e.Fields)
	} else {
		it, err = inv.reg.NewItem(e.Family, e.Fields)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", e.Key(), err)
	}
	return tx.Add(it)
}

// lineage is applied before other keys so setters validate against the
// new graph.
var lineage = []string{"parent", "distro", "menu", "repos", "profile", "image"}

func (inv *Inventory) update(next, prev Entry) error {
	it := inv.reg.Get(next.Family, next.Name)
	if it == nil {
		return fmt.Errorf("%w: %s", collection.ErrNotFound, next.Key())
	}

	keys := make(map[string]bool, len(next.Fields)+len(prev.Fields))
	for k := range next.Fields {
		keys[k] = true
	}
	for k := range prev.Fields {
		keys[k] = true
	}
	ordered := make([]string, 0, len(keys))
	for _, k := range lineage {
		if keys[k] {
			ordered = append(ordered, k)
			delete(keys, k)
		}
	}
	rest := make([]string, 0, len(keys))
	for k := range keys {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	for _, k := range ordered {
		if k == string(item.FieldName) {
			continue
		}
		nv, inNext := next.Fields[k]
		pv, inPrev := prev.Fields[k]
		if inNext && inPrev && reflect.DeepEqual(nv, pv) {
			continue
		}
		if !inNext {
			var ok bool
			if nv, ok = resetValue(next.Family, item.Field(k)); !ok {
				continue
			}
		}
		if err := it.Set(k, nv); err != nil {
			return fmt.Errorf("%s: %w", next.Key(), err)
		}
	}
	inv.log.WithFields(logrus.Fields{"item": next.Key()}).Debug("inventory entry updated")
	return nil
}

// resetValue is what a field returns to when its key leaves an entry.
// Write-once and bookkeeping fields keep their value.
func resetValue(f item.Family, field item.Field) (any, bool) {
	switch field {
	case item.FieldParent, item.FieldComment:
		return "", true
	case item.FieldTemplateFiles, item.FieldInterfaces:
		return map[string]any{}, true
	case item.FieldUID, item.FieldDepth, item.FieldCtime, item.FieldMtime, item.FieldIsSubobject:
		return nil, false
	}
	if _, ok := f.ReferenceTarget(field); ok {
		if field == item.FieldRepos {
			return []string{}, true
		}
		return "", true
	}
	if def, ok := item.LookupInheritable(field); ok {
		if def.Kind == item.KindDict {
			return map[string]any{}, true
		}
		return convert.Inherited, true
	}
	return nil, false
}

// Follow syncs every document received on changes until ctx ends or the
// channel closes. Failed reads and syncs are logged and skipped; report,
// if set, sees each successful diff.
func (inv *Inventory) Follow(ctx context.Context, changes <-chan Change, report func(Diff)) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if c.Err != nil {
				inv.log.WithError(c.Err).WithField("path", c.Path).Warn("inventory not reloaded")
				continue
			}
			diff, err := inv.Sync(c.Doc)
			if err != nil {
				inv.log.WithError(err).WithField("path", c.Path).Error("inventory sync failed")
				continue
			}
			if report != nil {
				report(diff)
			}
		}
	}
}
