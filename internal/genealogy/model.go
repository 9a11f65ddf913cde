package genealogy

import (
	"strings"
	"time"
)

// Object is implemented by every primary record.
type Object interface {
	Base() *Primary
	Namespace() Namespace
	// References lists every handle the record points to.
	References() []string
	// TextData lists the record's searchable text fields.
	TextData() []string
}

// Primary holds the fields shared by all primary records.
type Primary struct {
	Handle  string   `json:"handle"`
	ID      string   `json:"gramps_id"`
	Change  int64    `json:"change"`
	Private bool     `json:"private,omitempty"`
	TagList []string `json:"tag_list,omitempty"`
}

// Base returns the shared header.
func (p *Primary) Base() *Primary { return p }

// ChangeTime returns the last-modified timestamp.
func (p *Primary) ChangeTime() time.Time { return time.Unix(p.Change, 0) }

// HasTag reports whether the record carries the tag handle.
func (p *Primary) HasTag(handle string) bool {
	for _, h := range p.TagList {
		if h == handle {
			return true
		}
	}
	return false
}

// NoteHolder is implemented by records that reference notes.
type NoteHolder interface {
	Notes() []string
}

// CitationHolder is implemented by records that reference citations.
type CitationHolder interface {
	Citations() []string
}

// MediaHolder is implemented by records that reference media objects.
type MediaHolder interface {
	Media() []MediaRef
}

// AttributeHolder is implemented by records carrying typed attributes.
type AttributeHolder interface {
	Attributes() []Attribute
}

// EventHolder is implemented by records referencing events.
type EventHolder interface {
	EventRefs() []EventRef
}

type Annotated struct {
	NoteList []string `json:"note_list,omitempty"`
}

func (a *Annotated) Notes() []string { return a.NoteList }

type Cited struct {
	CitationList []string `json:"citation_list,omitempty"`
}

func (c *Cited) Citations() []string { return c.CitationList }

type Illustrated struct {
	MediaList []MediaRef `json:"media_list,omitempty"`
}

func (i *Illustrated) Media() []MediaRef { return i.MediaList }

type Attributed struct {
	AttributeList []Attribute `json:"attribute_list,omitempty"`
}

func (a *Attributed) Attributes() []Attribute { return a.AttributeList }

// MediaRef points at a Media object.
type MediaRef struct {
	Handle string `json:"ref"`
}

// Attribute is a typed key/value pair.
type Attribute struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// EventRef points at an Event with the referrer's role in it.
type EventRef struct {
	Handle string `json:"ref"`
	Role   string `json:"role,omitempty"`
}

// IsPrimaryRole reports whether the referrer is the event's main participant.
func (r EventRef) IsPrimaryRole() bool {
	return r.Role == "" || strings.EqualFold(r.Role, RolePrimary) || strings.EqualFold(r.Role, RoleFamily)
}

const (
	RolePrimary = "Primary"
	RoleFamily  = "Family"
)

// ChildRef links a child to a family with per-parent relations.
type ChildRef struct {
	Handle    string `json:"ref"`
	FatherRel string `json:"frel,omitempty"`
	MotherRel string `json:"mrel,omitempty"`
}

// IsBirth reports whether both parental relations are biological.
func (c ChildRef) IsBirth() bool {
	return isBirthRel(c.FatherRel) && isBirthRel(c.MotherRel)
}

func isBirthRel(rel string) bool {
	return rel == "" || strings.EqualFold(rel, "Birth")
}

// RepoRef links a source to a repository.
type RepoRef struct {
	Handle     string `json:"ref"`
	CallNumber string `json:"call_number,omitempty"`
	MediaType  string `json:"media_type,omitempty"`
}

// Gender uses the persisted numeric codes.
type Gender int

const (
	GenderFemale  Gender = 0
	GenderMale    Gender = 1
	GenderUnknown Gender = 2
)

// Name is one of a person's names.
type Name struct {
	FirstName string `json:"first_name,omitempty"`
	Surname   string `json:"surname,omitempty"`
	Suffix    string `json:"suffix,omitempty"`
	Title     string `json:"title,omitempty"`
	Nick      string `json:"nick,omitempty"`
	Call      string `json:"call,omitempty"`
	Type      string `json:"type,omitempty"`
}

// FullName renders "First Surname Suffix" without empty parts.
func (n Name) FullName() string {
	return joinNonEmpty(n.FirstName, n.Surname, n.Suffix)
}

// Fields returns every textual part of the name.
func (n Name) Fields() []string {
	return []string{n.FirstName, n.Surname, n.Suffix, n.Title, n.Nick, n.Call}
}

type Person struct {
	Primary
	Annotated
	Cited
	Illustrated
	Attributed
	Gender           Gender     `json:"gender"`
	PrimaryName      Name       `json:"primary_name"`
	AlternateNames   []Name     `json:"alternate_names,omitempty"`
	EventRefList     []EventRef `json:"event_ref_list,omitempty"`
	BirthRef         string     `json:"birth_ref,omitempty"`
	DeathRef         string     `json:"death_ref,omitempty"`
	FamilyList       []string   `json:"family_list,omitempty"`
	ParentFamilyList []string   `json:"parent_family_list,omitempty"`
	// Complete marks a record the researcher considers finished.
	Complete bool `json:"complete,omitempty"`
}

func (p *Person) Namespace() Namespace  { return NSPerson }
func (p *Person) EventRefs() []EventRef { return p.EventRefList }

// Names returns the primary name followed by alternates.
func (p *Person) Names() []Name {
	return append([]Name{p.PrimaryName}, p.AlternateNames...)
}

// MainParents returns the first parent family, or "".
func (p *Person) MainParents() string {
	if len(p.ParentFamilyList) == 0 {
		return ""
	}
	return p.ParentFamilyList[0]
}

func (p *Person) References() []string {
	refs := collect(p.NoteList, p.CitationList, p.FamilyList, p.ParentFamilyList, p.TagList)
	for _, r := range p.EventRefList {
		refs = append(refs, r.Handle)
	}
	return appendMedia(refs, p.MediaList)
}

func (p *Person) TextData() []string {
	data := []string{p.ID}
	for _, n := range p.Names() {
		data = append(data, n.Fields()...)
	}
	for _, a := range p.AttributeList {
		data = append(data, a.Value)
	}
	return data
}

type Family struct {
	Primary
	Annotated
	Cited
	Illustrated
	Attributed
	FatherHandle string     `json:"father_handle,omitempty"`
	MotherHandle string     `json:"mother_handle,omitempty"`
	ChildRefList []ChildRef `json:"child_ref_list,omitempty"`
	Type         string     `json:"type,omitempty"`
	EventRefList []EventRef `json:"event_ref_list,omitempty"`
}

func (f *Family) Namespace() Namespace  { return NSFamily }
func (f *Family) EventRefs() []EventRef { return f.EventRefList }

// Spouse returns the other parent of the family relative to handle.
func (f *Family) Spouse(handle string) string {
	switch handle {
	case f.FatherHandle:
		return f.MotherHandle
	case f.MotherHandle:
		return f.FatherHandle
	}
	return ""
}

func (f *Family) References() []string {
	refs := collect(f.NoteList, f.CitationList, f.TagList)
	for _, h := range []string{f.FatherHandle, f.MotherHandle} {
		if h != "" {
			refs = append(refs, h)
		}
	}
	for _, c := range f.ChildRefList {
		refs = append(refs, c.Handle)
	}
	for _, r := range f.EventRefList {
		refs = append(refs, r.Handle)
	}
	return appendMedia(refs, f.MediaList)
}

func (f *Family) TextData() []string {
	data := []string{f.ID, f.Type}
	for _, a := range f.AttributeList {
		data = append(data, a.Value)
	}
	return data
}

type Event struct {
	Primary
	Annotated
	Cited
	Illustrated
	Attributed
	Type        string `json:"type"`
	Date        Date   `json:"date"`
	Description string `json:"description,omitempty"`
	Place       string `json:"place,omitempty"`
}

func (e *Event) Namespace() Namespace { return NSEvent }

func (e *Event) References() []string {
	refs := collect(e.NoteList, e.CitationList, e.TagList)
	if e.Place != "" {
		refs = append(refs, e.Place)
	}
	return appendMedia(refs, e.MediaList)
}

func (e *Event) TextData() []string {
	return []string{e.ID, e.Type, e.Date.String(), e.Description}
}

type Place struct {
	Primary
	Annotated
	Cited
	Illustrated
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Code string `json:"code,omitempty"`
	Lat  string `json:"lat,omitempty"`
	Long string `json:"long,omitempty"`
}

func (p *Place) Namespace() Namespace { return NSPlace }

func (p *Place) References() []string {
	return appendMedia(collect(p.NoteList, p.CitationList, p.TagList), p.MediaList)
}

func (p *Place) TextData() []string {
	return []string{p.ID, p.Name, p.Type, p.Code, p.Lat, p.Long}
}

type Source struct {
	Primary
	Annotated
	Illustrated
	Attributed
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	PubInfo     string    `json:"pubinfo,omitempty"`
	Abbrev      string    `json:"abbrev,omitempty"`
	RepoRefList []RepoRef `json:"reporef_list,omitempty"`
}

func (s *Source) Namespace() Namespace { return NSSource }

func (s *Source) References() []string {
	refs := collect(s.NoteList, s.TagList)
	for _, r := range s.RepoRefList {
		refs = append(refs, r.Handle)
	}
	return appendMedia(refs, s.MediaList)
}

func (s *Source) TextData() []string {
	return []string{s.ID, s.Title, s.Author, s.PubInfo, s.Abbrev}
}

// Confidence levels of a citation.
const (
	ConfidenceVeryLow  = 0
	ConfidenceLow      = 1
	ConfidenceNormal   = 2
	ConfidenceHigh     = 3
	ConfidenceVeryHigh = 4
)

type Citation struct {
	Primary
	Annotated
	Illustrated
	Attributed
	SourceHandle string `json:"source_handle,omitempty"`
	Page         string `json:"page,omitempty"`
	Confidence   int    `json:"confidence"`
	Date         Date   `json:"date"`
}

func (c *Citation) Namespace() Namespace { return NSCitation }

func (c *Citation) References() []string {
	refs := collect(c.NoteList, c.TagList)
	if c.SourceHandle != "" {
		refs = append(refs, c.SourceHandle)
	}
	return appendMedia(refs, c.MediaList)
}

func (c *Citation) TextData() []string {
	return []string{c.ID, c.Page, c.Date.String()}
}

type Repository struct {
	Primary
	Annotated
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Address string `json:"address,omitempty"`
	URL     string `json:"url,omitempty"`
}

func (r *Repository) Namespace() Namespace { return NSRepository }

func (r *Repository) References() []string { return collect(r.NoteList, r.TagList) }

func (r *Repository) TextData() []string {
	return []string{r.ID, r.Name, r.Type, r.Address, r.URL}
}

type Note struct {
	Primary
	Text string `json:"text"`
	Type string `json:"type,omitempty"`
}

func (n *Note) Namespace() Namespace { return NSNote }

func (n *Note) References() []string { return collect(n.TagList) }

func (n *Note) TextData() []string { return []string{n.ID, n.Text, n.Type} }

type Media struct {
	Primary
	Annotated
	Cited
	Attributed
	Path        string `json:"path"`
	MimeType    string `json:"mime,omitempty"`
	Description string `json:"desc,omitempty"`
	Date        Date   `json:"date"`
}

func (m *Media) Namespace() Namespace { return NSMedia }

func (m *Media) References() []string {
	return collect(m.NoteList, m.CitationList, m.TagList)
}

func (m *Media) TextData() []string {
	return []string{m.ID, m.Path, m.MimeType, m.Description, m.Date.String()}
}

// Tag is a named label attached to records by handle.
type Tag struct {
	Handle   string `json:"handle"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

func collect(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func appendMedia(refs []string, media []MediaRef) []string {
	for _, m := range media {
		refs = append(refs, m.Handle)
	}
	return refs
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
