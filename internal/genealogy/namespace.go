package genealogy

import (
	"fmt"
	"strings"
)

// Namespace names a primary record type. Filters, rules and filter lists are
// keyed by it.
type Namespace string

const (
	NSPerson     Namespace = "Person"
	NSFamily     Namespace = "Family"
	NSEvent      Namespace = "Event"
	NSPlace      Namespace = "Place"
	NSSource     Namespace = "Source"
	NSCitation   Namespace = "Citation"
	NSRepository Namespace = "Repository"
	NSNote       Namespace = "Note"
	NSMedia      Namespace = "Media"
)

// Namespaces lists every record type in display order.
var Namespaces = []Namespace{
	NSPerson,
	NSFamily,
	NSEvent,
	NSPlace,
	NSSource,
	NSCitation,
	NSRepository,
	NSNote,
	NSMedia,
}

// ParseNamespace accepts a namespace name in any letter case.
func ParseNamespace(s string) (Namespace, error) {
	for _, ns := range Namespaces {
		if strings.EqualFold(string(ns), strings.TrimSpace(s)) {
			return ns, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNamespace, s)
}

func (ns Namespace) String() string { return string(ns) }

// NewObject returns an empty record of the namespace's concrete type, suitable
// as a decode target.
func NewObject(ns Namespace) (Object, error) {
	switch ns {
	case NSPerson:
		return &Person{}, nil
	case NSFamily:
		return &Family{}, nil
	case NSEvent:
		return &Event{}, nil
	case NSPlace:
		return &Place{}, nil
	case NSSource:
		return &Source{}, nil
	case NSCitation:
		return &Citation{}, nil
	case NSRepository:
		return &Repository{}, nil
	case NSNote:
		return &Note{}, nil
	case NSMedia:
		return &Media{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNamespace, string(ns))
}
