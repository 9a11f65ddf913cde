package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rpggio/lineage/internal/genealogy"
)

// Dump is the JSON interchange document accepted by Import. Records are
// grouped by namespace name.
type Dump struct {
	Records       map[string][]json.RawMessage `json:"records"`
	Tags          []genealogy.Tag              `json:"tags,omitempty"`
	DefaultPerson string                       `json:"default_person,omitempty"`
	Bookmarks     map[string][]string          `json:"bookmarks,omitempty"`
}

// Import reads a Dump and stores its contents. It returns the number of
// records written.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	var dump Dump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return 0, fmt.Errorf("failed to parse dump: %w", err)
	}

	for i := range dump.Tags {
		if err := s.PutTag(ctx, &dump.Tags[i]); err != nil {
			return 0, err
		}
	}

	count := 0
	for name, raws := range dump.Records {
		ns, err := genealogy.ParseNamespace(name)
		if err != nil {
			return count, err
		}
		for _, raw := range raws {
			obj, err := genealogy.NewObject(ns)
			if err != nil {
				return count, err
			}
			if err := json.Unmarshal(raw, obj); err != nil {
				return count, fmt.Errorf("failed to decode %s record: %w", ns, err)
			}
			if err := s.Put(ctx, obj); err != nil {
				return count, err
			}
			count++
		}
	}

	if dump.DefaultPerson != "" {
		if err := s.SetDefaultPerson(ctx, dump.DefaultPerson); err != nil {
			return count, err
		}
	}
	for name, handles := range dump.Bookmarks {
		ns, err := genealogy.ParseNamespace(name)
		if err != nil {
			return count, err
		}
		for _, h := range handles {
			if err := s.AddBookmark(ctx, ns, h); err != nil {
				return count, err
			}
		}
	}
	return count, nil
}
