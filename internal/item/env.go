package item

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/papapumpkin/bootforge/internal/match"
	"github.com/papapumpkin/bootforge/internal/telemetry"
)

// Lookup gives items access to the live family collections. Implementations
// must not hold locks across calls back into items.
type Lookup interface {
	// Get returns the item of family f named name, or nil.
	Get(f Family, name string) *Item
	// Items returns every item of family f in a stable order.
	Items(f Family) []*Item
	// Find returns the items of family f matching criteria, non-strictly.
	Find(f Family, criteria match.Criteria) ([]*Item, error)
}

// Settings is the global settings object at the root of every resolution chain.
type Settings interface {
	// Get returns the named setting and whether it is defined.
	Get(name string) (any, bool)
	// CacheEnabled reports whether resolved values may be cached.
	CacheEnabled() bool
}

// Loader materializes the full attribute map of a stub item.
type Loader interface {
	Load(it *Item) (map[string]any, error)
}

// Logger is the subset of logrus.FieldLogger the core writes to.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Env bundles the collaborators an item resolves against. Lookup and
// Settings are required once an item is used beyond construction; the rest
// are optional.
type Env struct {
	Lookup   Lookup
	Settings Settings
	Loader   Loader
	Log      Logger
	Events   *telemetry.Emitter
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (e *Env) log() Logger {
	if e == nil || e.Log == nil {
		return discard
	}
	return e.Log
}

func (e *Env) emit(kind string, it *Item, data any) {
	if e == nil || e.Events == nil {
		return
	}
	if err := e.Events.Emit(telemetry.Event{
		Timestamp: time.Now(),
		Kind:      kind,
		Family:    it.family.String(),
		Item:      it.name,
		Data:      data,
	}); err != nil {
		e.log().Warnf("telemetry: %v", err)
	}
}

func (e *Env) cacheEnabled() bool {
	return e != nil && e.Settings != nil && e.Settings.CacheEnabled()
}

func (e *Env) setting(name string) (any, bool) {
	if e == nil || e.Settings == nil {
		return nil, false
	}
	return e.Settings.Get(name)
}

func (e *Env) get(f Family, name string) *Item {
	if e == nil || e.Lookup == nil || name == "" {
		return nil
	}
	return e.Lookup.Get(f, name)
}

func (e *Env) items(f Family) []*Item {
	if e == nil || e.Lookup == nil {
		return nil
	}
	return e.Lookup.Items(f)
}

func (e *Env) find(f Family, c match.Criteria) ([]*Item, error) {
	if e == nil || e.Lookup == nil {
		return nil, nil
	}
	return e.Lookup.Find(f, c)
}
