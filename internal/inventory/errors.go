package inventory

import "errors"

// Sentinel errors for inventory parsing and planning.
var (
	// ErrNoInventory indicates the inventory file does not exist.
	ErrNoInventory = errors.New("inventory file not found")
	// ErrMissingName indicates an entry without a name.
	ErrMissingName = errors.New("entry has no name")
	// ErrDuplicateEntry indicates two entries of one family share a name.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrUnknownReference indicates an entry naming an item the inventory does not define.
	ErrUnknownReference = errors.New("entry references unknown item")
	// ErrNotInInventory indicates a lazy item with no inventory entry to load from.
	ErrNotInInventory = errors.New("item not in inventory")
)
