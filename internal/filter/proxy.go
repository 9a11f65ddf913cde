package filter

import (
	"context"
	"fmt"

	"github.com/rpggio/lineage/internal/genealogy"
)

// Proxy is a read-only view of a database restricted by person, event and
// note filters. Families stay visible while a visible person belongs to
// them. Records that remain visible have their references to hidden
// records removed.
type Proxy struct {
	db genealogy.Database

	// nil sets mean "everything visible".
	people   map[string]bool
	events   map[string]bool
	notes    map[string]bool
	families map[string]bool
}

var _ genealogy.Database = (*Proxy)(nil)

// NewProxy evaluates the given filters once against env.DB. Any filter may
// be nil.
func NewProxy(ctx context.Context, env *Env, person, event, note *GenericFilter) (*Proxy, error) {
	p := &Proxy{db: env.DB}

	var err error
	if p.people, err = visible(ctx, env, person); err != nil {
		return nil, err
	}
	if p.events, err = visible(ctx, env, event); err != nil {
		return nil, err
	}
	if p.notes, err = visible(ctx, env, note); err != nil {
		return nil, err
	}

	if p.people != nil {
		p.families = make(map[string]bool)
		for handle := range p.people {
			person, err := genealogy.GetPerson(ctx, env.DB, handle)
			if err != nil {
				continue
			}
			for _, fam := range person.FamilyList {
				p.families[fam] = true
			}
			for _, fam := range person.ParentFamilyList {
				p.families[fam] = true
			}
		}
	}
	return p, nil
}

func visible(ctx context.Context, env *Env, f *GenericFilter) (map[string]bool, error) {
	if f == nil {
		return nil, nil
	}
	handles, err := f.Apply(ctx, env, nil)
	if err != nil {
		return nil, fmt.Errorf("proxy %s filter: %w", f.Namespace(), err)
	}
	set := make(map[string]bool, len(handles))
	for _, h := range handles {
		set[h] = true
	}
	return set, nil
}

func (p *Proxy) include(ns genealogy.Namespace, handle string) bool {
	var set map[string]bool
	switch ns {
	case genealogy.NSPerson:
		set = p.people
	case genealogy.NSEvent:
		set = p.events
	case genealogy.NSNote:
		set = p.notes
	case genealogy.NSFamily:
		set = p.families
	default:
		return true
	}
	return set == nil || set[handle]
}

func (p *Proxy) keep(ns genealogy.Namespace, handles []string) []string {
	var out []string
	for _, h := range handles {
		if p.include(ns, h) {
			out = append(out, h)
		}
	}
	return out
}

// sanitize returns a copy of obj without references to hidden records.
func (p *Proxy) sanitize(obj genealogy.Object) genealogy.Object {
	switch o := obj.(type) {
	case *genealogy.Person:
		c := *o
		c.NoteList = p.keep(genealogy.NSNote, o.NoteList)
		c.FamilyList = p.keep(genealogy.NSFamily, o.FamilyList)
		c.ParentFamilyList = p.keep(genealogy.NSFamily, o.ParentFamilyList)
		c.EventRefList = p.keepEvents(o.EventRefList)
		if !p.include(genealogy.NSEvent, c.BirthRef) {
			c.BirthRef = ""
		}
		if !p.include(genealogy.NSEvent, c.DeathRef) {
			c.DeathRef = ""
		}
		return &c
	case *genealogy.Family:
		c := *o
		c.NoteList = p.keep(genealogy.NSNote, o.NoteList)
		c.EventRefList = p.keepEvents(o.EventRefList)
		if !p.include(genealogy.NSPerson, c.FatherHandle) {
			c.FatherHandle = ""
		}
		if !p.include(genealogy.NSPerson, c.MotherHandle) {
			c.MotherHandle = ""
		}
		c.ChildRefList = nil
		for _, ref := range o.ChildRefList {
			if p.include(genealogy.NSPerson, ref.Handle) {
				c.ChildRefList = append(c.ChildRefList, ref)
			}
		}
		return &c
	case *genealogy.Event:
		c := *o
		c.NoteList = p.keep(genealogy.NSNote, o.NoteList)
		return &c
	case *genealogy.Place:
		c := *o
		c.NoteList = p.keep(genealogy.NSNote, o.NoteList)
		return &c
	case *genealogy.Source:
		c := *o
		c.NoteList = p.keep(genealogy.NSNote, o.NoteList)
		return &c
	case *genealogy.Citation:
		c := *o
		c.NoteList = p.keep(genealogy.NSNote, o.NoteList)
		return &c
	case *genealogy.Repository:
		c := *o
		c.NoteList = p.keep(genealogy.NSNote, o.NoteList)
		return &c
	case *genealogy.Media:
		c := *o
		c.NoteList = p.keep(genealogy.NSNote, o.NoteList)
		return &c
	}
	return obj
}

func (p *Proxy) keepEvents(refs []genealogy.EventRef) []genealogy.EventRef {
	var out []genealogy.EventRef
	for _, r := range refs {
		if p.include(genealogy.NSEvent, r.Handle) {
			out = append(out, r)
		}
	}
	return out
}

func (p *Proxy) Get(ctx context.Context, ns genealogy.Namespace, handle string) (genealogy.Object, error) {
	if !p.include(ns, handle) {
		return nil, genealogy.ErrNotFound
	}
	obj, err := p.db.Get(ctx, ns, handle)
	if err != nil {
		return nil, err
	}
	return p.sanitize(obj), nil
}

func (p *Proxy) GetByID(ctx context.Context, ns genealogy.Namespace, id string) (genealogy.Object, error) {
	obj, err := p.db.GetByID(ctx, ns, id)
	if err != nil {
		return nil, err
	}
	if !p.include(ns, obj.Base().Handle) {
		return nil, genealogy.ErrNotFound
	}
	return p.sanitize(obj), nil
}

func (p *Proxy) Handles(ctx context.Context, ns genealogy.Namespace) ([]string, error) {
	handles, err := p.db.Handles(ctx, ns)
	if err != nil {
		return nil, err
	}
	return p.keep(ns, handles), nil
}

func (p *Proxy) Iterate(ctx context.Context, ns genealogy.Namespace, fn func(genealogy.Object) error) error {
	return p.db.Iterate(ctx, ns, func(obj genealogy.Object) error {
		if !p.include(ns, obj.Base().Handle) {
			return nil
		}
		return fn(p.sanitize(obj))
	})
}

func (p *Proxy) TagFromName(ctx context.Context, name string) (*genealogy.Tag, error) {
	return p.db.TagFromName(ctx, name)
}

func (p *Proxy) DefaultPersonHandle(ctx context.Context) (string, error) {
	handle, err := p.db.DefaultPersonHandle(ctx)
	if err != nil || !p.include(genealogy.NSPerson, handle) {
		return "", err
	}
	return handle, nil
}

func (p *Proxy) Bookmarks(ctx context.Context, ns genealogy.Namespace) ([]string, error) {
	handles, err := p.db.Bookmarks(ctx, ns)
	if err != nil {
		return nil, err
	}
	return p.keep(ns, handles), nil
}

// ReferenceCount counts referrers in the underlying database, hidden ones
// included.
func (p *Proxy) ReferenceCount(ctx context.Context, handle string) (int, error) {
	return p.db.ReferenceCount(ctx, handle)
}
