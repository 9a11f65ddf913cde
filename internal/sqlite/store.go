package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rpggio/lineage/internal/genealogy"
)

const defaultPersonKey = "default_person"

// Store implements genealogy.Database on top of the objects table. Records
// are stored as JSON documents; the refs table backs reference counts.
type Store struct {
	db *DB
}

var _ genealogy.Database = (*Store)(nil)

// NewStore creates a new Store
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Put inserts or replaces a record. An empty handle is assigned a new one.
func (s *Store) Put(ctx context.Context, obj genealogy.Object) error {
	base := obj.Base()
	if base.Handle == "" {
		base.Handle = uuid.NewString()
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", obj.Namespace(), base.Handle, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := s.db.rebind(`
		INSERT INTO objects (handle, namespace, gramps_id, change_time, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (handle) DO UPDATE SET
			namespace = excluded.namespace,
			gramps_id = excluded.gramps_id,
			change_time = excluded.change_time,
			data = excluded.data
	`)
	if _, err := tx.ExecContext(ctx, upsert,
		base.Handle, string(obj.Namespace()), base.ID, base.Change, string(data),
	); err != nil {
		return fmt.Errorf("failed to store %s %s: %w", obj.Namespace(), base.Handle, err)
	}

	if _, err := tx.ExecContext(ctx, s.db.rebind(`DELETE FROM refs WHERE from_handle = ?`), base.Handle); err != nil {
		return fmt.Errorf("failed to clear references: %w", err)
	}
	insertRef := s.db.rebind(`INSERT INTO refs (from_handle, to_handle) VALUES (?, ?) ON CONFLICT DO NOTHING`)
	for _, ref := range obj.References() {
		if ref == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, insertRef, base.Handle, ref); err != nil {
			return fmt.Errorf("failed to add reference: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Delete removes a record and its outgoing references.
func (s *Store) Delete(ctx context.Context, ns genealogy.Namespace, handle string) error {
	result, err := s.db.ExecContext(ctx, s.db.rebind(`DELETE FROM objects WHERE namespace = ? AND handle = ?`), string(ns), handle)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", ns, handle, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return genealogy.ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx, s.db.rebind(`DELETE FROM refs WHERE from_handle = ?`), handle); err != nil {
		return fmt.Errorf("failed to clear references: %w", err)
	}
	return nil
}

// PutTag inserts or replaces a tag.
func (s *Store) PutTag(ctx context.Context, tag *genealogy.Tag) error {
	if tag.Handle == "" {
		tag.Handle = uuid.NewString()
	}
	query := s.db.rebind(`
		INSERT INTO tags (handle, name, color, priority) VALUES (?, ?, ?, ?)
		ON CONFLICT (handle) DO UPDATE SET name = excluded.name, color = excluded.color, priority = excluded.priority
	`)
	if _, err := s.db.ExecContext(ctx, query, tag.Handle, tag.Name, tag.Color, tag.Priority); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: tag %q", ErrDuplicate, tag.Name)
		}
		return fmt.Errorf("failed to store tag: %w", err)
	}
	return nil
}

// SetDefaultPerson records the home person. An empty handle clears it.
func (s *Store) SetDefaultPerson(ctx context.Context, handle string) error {
	query := s.db.rebind(`
		INSERT INTO metadata (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value
	`)
	if _, err := s.db.ExecContext(ctx, query, defaultPersonKey, handle); err != nil {
		return fmt.Errorf("failed to set default person: %w", err)
	}
	return nil
}

// AddBookmark appends a handle to the namespace's bookmarks.
func (s *Store) AddBookmark(ctx context.Context, ns genealogy.Namespace, handle string) error {
	query := s.db.rebind(`
		INSERT INTO bookmarks (namespace, handle, position)
		VALUES (?, ?, (SELECT COUNT(*) FROM bookmarks WHERE namespace = ?))
		ON CONFLICT (namespace, handle) DO NOTHING
	`)
	if _, err := s.db.ExecContext(ctx, query, string(ns), handle, string(ns)); err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	return nil
}

// Get returns the record with the handle.
func (s *Store) Get(ctx context.Context, ns genealogy.Namespace, handle string) (genealogy.Object, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		s.db.rebind(`SELECT data FROM objects WHERE namespace = ? AND handle = ?`),
		string(ns), handle,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, genealogy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", ns, handle, err)
	}
	return decode(ns, data)
}

// GetByID returns the record with the user-visible ID.
func (s *Store) GetByID(ctx context.Context, ns genealogy.Namespace, id string) (genealogy.Object, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		s.db.rebind(`SELECT data FROM objects WHERE namespace = ? AND gramps_id = ? ORDER BY handle LIMIT 1`),
		string(ns), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, genealogy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s by id %s: %w", ns, id, err)
	}
	return decode(ns, data)
}

// Handles lists the namespace's handles ordered by ID.
func (s *Store) Handles(ctx context.Context, ns genealogy.Namespace) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.rebind(`SELECT handle FROM objects WHERE namespace = ? ORDER BY gramps_id, handle`),
		string(ns),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s handles: %w", ns, err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan handle: %w", err)
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate handles: %w", err)
	}
	return handles, nil
}

// Iterate decodes every record of the namespace before calling fn, so fn may
// issue its own queries.
func (s *Store) Iterate(ctx context.Context, ns genealogy.Namespace, fn func(genealogy.Object) error) error {
	rows, err := s.db.QueryContext(ctx,
		s.db.rebind(`SELECT data FROM objects WHERE namespace = ? ORDER BY gramps_id, handle`),
		string(ns),
	)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", ns, err)
	}

	var objs []genealogy.Object
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan %s row: %w", ns, err)
		}
		obj, err := decode(ns, data)
		if err != nil {
			rows.Close()
			return err
		}
		objs = append(objs, obj)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate %s: %w", ns, err)
	}
	rows.Close()

	for _, obj := range objs {
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

// TagFromName looks a tag up by its name.
func (s *Store) TagFromName(ctx context.Context, name string) (*genealogy.Tag, error) {
	var tag genealogy.Tag
	err := s.db.QueryRowContext(ctx,
		s.db.rebind(`SELECT handle, name, color, priority FROM tags WHERE name = ?`),
		name,
	).Scan(&tag.Handle, &tag.Name, &tag.Color, &tag.Priority)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, genealogy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag %q: %w", name, err)
	}
	return &tag, nil
}

func (s *Store) DefaultPersonHandle(ctx context.Context) (string, error) {
	var handle string
	err := s.db.QueryRowContext(ctx,
		s.db.rebind(`SELECT value FROM metadata WHERE name = ?`),
		defaultPersonKey,
	).Scan(&handle)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get default person: %w", err)
	}
	return handle, nil
}

func (s *Store) Bookmarks(ctx context.Context, ns genealogy.Namespace) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.rebind(`SELECT handle FROM bookmarks WHERE namespace = ? ORDER BY position`),
		string(ns),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

func (s *Store) ReferenceCount(ctx context.Context, handle string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		s.db.rebind(`SELECT COUNT(*) FROM refs WHERE to_handle = ?`),
		handle,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count references: %w", err)
	}
	return count, nil
}

func decode(ns genealogy.Namespace, data string) (genealogy.Object, error) {
	obj, err := genealogy.NewObject(ns)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), obj); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ns, err)
	}
	return obj, nil
}
