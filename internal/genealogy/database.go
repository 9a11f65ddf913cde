package genealogy

import (
	"context"
	"fmt"
)

// Database is the read-only view of a family tree that filters evaluate
// against. Implementations must be safe for concurrent readers.
type Database interface {
	// Get returns the record with the handle, or ErrNotFound.
	Get(ctx context.Context, ns Namespace, handle string) (Object, error)
	// GetByID returns the record with the user-visible ID, or ErrNotFound.
	GetByID(ctx context.Context, ns Namespace, id string) (Object, error)
	// Handles lists every handle of the namespace in a stable order.
	Handles(ctx context.Context, ns Namespace) ([]string, error)
	// Iterate calls fn for every record of the namespace, in Handles order,
	// and stops at the first error fn returns.
	Iterate(ctx context.Context, ns Namespace, fn func(Object) error) error
	// TagFromName returns the tag with the name, or ErrNotFound.
	TagFromName(ctx context.Context, name string) (*Tag, error)
	// DefaultPersonHandle returns the home person, or "" when none is set.
	DefaultPersonHandle(ctx context.Context) (string, error)
	// Bookmarks lists bookmarked handles of the namespace.
	Bookmarks(ctx context.Context, ns Namespace) ([]string, error)
	// ReferenceCount counts the records that point to handle.
	ReferenceCount(ctx context.Context, handle string) (int, error)
}

func fetch[T Object](ctx context.Context, db Database, ns Namespace, handle string) (T, error) {
	var zero T
	obj, err := db.Get(ctx, ns, handle)
	if err != nil {
		return zero, err
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%s %s: unexpected type %T", ns, handle, obj)
	}
	return typed, nil
}

func GetPerson(ctx context.Context, db Database, handle string) (*Person, error) {
	return fetch[*Person](ctx, db, NSPerson, handle)
}

func GetFamily(ctx context.Context, db Database, handle string) (*Family, error) {
	return fetch[*Family](ctx, db, NSFamily, handle)
}

func GetEvent(ctx context.Context, db Database, handle string) (*Event, error) {
	return fetch[*Event](ctx, db, NSEvent, handle)
}

func GetPlace(ctx context.Context, db Database, handle string) (*Place, error) {
	return fetch[*Place](ctx, db, NSPlace, handle)
}

func GetSource(ctx context.Context, db Database, handle string) (*Source, error) {
	return fetch[*Source](ctx, db, NSSource, handle)
}

func GetCitation(ctx context.Context, db Database, handle string) (*Citation, error) {
	return fetch[*Citation](ctx, db, NSCitation, handle)
}

func GetRepository(ctx context.Context, db Database, handle string) (*Repository, error) {
	return fetch[*Repository](ctx, db, NSRepository, handle)
}

func GetNote(ctx context.Context, db Database, handle string) (*Note, error) {
	return fetch[*Note](ctx, db, NSNote, handle)
}

func GetMedia(ctx context.Context, db Database, handle string) (*Media, error) {
	return fetch[*Media](ctx, db, NSMedia, handle)
}
