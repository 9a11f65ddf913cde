// Package testdb provides in-memory family trees for tests.
package testdb

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/lineage/internal/genealogy"
	"github.com/rpggio/lineage/internal/sqlite"
	"github.com/stretchr/testify/require"
)

// New returns an empty migrated in-memory store.
func New(t testing.TB) *sqlite.Store {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.RunMigrations(), "failed to run migrations")
	t.Cleanup(func() {
		db.Close()
	})
	return sqlite.NewStore(db)
}

// Changed returns the change timestamp of a local wall-clock time.
func Changed(year int, month time.Month, day, hour, min, sec int) int64 {
	return time.Date(year, month, day, hour, min, sec, 0, time.Local).Unix()
}

// Sample returns a store holding a small three-generation tree:
//
//	F1: Robert Smithson (P1) + Mary Jones (P2); children James (P3), Anna (P4)
//	F2: James Smithson (P3) + Linda Brown (P5); child Peter (P6)
//	F3: (no father) + Ruth Miller (P7); Peter (P6) adopted
//	P8 Solo is disconnected with an unknown gender and no surname.
//
// Person IDs are I0001..I0008 in handle order. P1 is the default person with
// a complete record and P3 is bookmarked. Mary's change time is exactly
// 2020-01-01 00:00:00 local.
func Sample(t testing.TB) *sqlite.Store {
	t.Helper()
	store := New(t)
	ctx := context.Background()

	put := func(objs ...genealogy.Object) {
		for _, obj := range objs {
			require.NoError(t, store.Put(ctx, obj))
		}
	}

	require.NoError(t, store.PutTag(ctx, &genealogy.Tag{Handle: "T1", Name: "ToDo", Color: "#ff0000"}))

	put(
		&genealogy.Place{Primary: genealogy.Primary{Handle: "PL1", ID: "P0001", Change: Changed(2015, 1, 1, 0, 0, 0)},
			Name: "Boston", Type: "City", Code: "BOS", Lat: "42.36", Long: "-71.06"},
		&genealogy.Place{Primary: genealogy.Primary{Handle: "PL2", ID: "P0002", Change: Changed(2015, 1, 1, 0, 0, 0)},
			Name: "Springfield", Type: "Town", Code: "SPR"},
		&genealogy.Repository{Primary: genealogy.Primary{Handle: "R1", ID: "R0001", Change: Changed(2015, 1, 1, 0, 0, 0)},
			Name: "Boston Public Library", Type: "Library", Address: "700 Boylston St", URL: "https://bpl.example.org"},
		&genealogy.Source{Primary: genealogy.Primary{Handle: "S1", ID: "S0001", Change: Changed(2016, 1, 1, 0, 0, 0)},
			Title: "Parish Register", Author: "St. Mary Church", Abbrev: "PR", PubInfo: "Boston, 1900",
			RepoRefList: []genealogy.RepoRef{{Handle: "R1", CallNumber: "BX-12", MediaType: "Book"}}},
		&genealogy.Source{Primary: genealogy.Primary{Handle: "S2", ID: "S0002", Change: Changed(2016, 1, 1, 0, 0, 0)},
			Title: "Census 1940", Author: "US Census Bureau"},
		&genealogy.Citation{Primary: genealogy.Primary{Handle: "C1", ID: "C0001", Change: Changed(2016, 2, 1, 0, 0, 0)},
			SourceHandle: "S1", Page: "p. 12", Confidence: genealogy.ConfidenceHigh, Date: genealogy.MustParseDate("1952-03")},
		&genealogy.Citation{Primary: genealogy.Primary{Handle: "C2", ID: "C0002", Change: Changed(2016, 2, 1, 0, 0, 0)},
			SourceHandle: "S2", Page: "line 4", Confidence: genealogy.ConfidenceLow},
		&genealogy.Note{Primary: genealogy.Primary{Handle: "N1", ID: "N0001", Change: Changed(2017, 1, 1, 0, 0, 0)},
			Text: "Emigrated from Ireland in 1948", Type: "General"},
		&genealogy.Note{Primary: genealogy.Primary{Handle: "N2", ID: "N0002", Change: Changed(2017, 1, 1, 0, 0, 0)},
			Text: "Research needed on the Jones line", Type: "Research"},
		&genealogy.Media{Primary: genealogy.Primary{Handle: "M1", ID: "O0001", Change: Changed(2017, 5, 1, 0, 0, 0)},
			Path: "photos/james.jpg", MimeType: "image/jpeg", Description: "James portrait", Date: genealogy.MustParseDate("1970")},
	)

	put(
		&genealogy.Event{Primary: genealogy.Primary{Handle: "E1", ID: "E0001", Change: Changed(2018, 1, 1, 0, 0, 0)},
			Annotated: genealogy.Annotated{NoteList: []string{"N1"}},
			Type:      "Birth", Date: genealogy.MustParseDate("1952-03-04"), Place: "PL1", Description: "Born at home"},
		&genealogy.Event{Primary: genealogy.Primary{Handle: "E2", ID: "E0002", Change: Changed(2018, 1, 1, 0, 0, 0)},
			Type: "Death", Date: genealogy.MustParseDate("1990-11-20"), Place: "PL2", Description: "Died of influenza"},
		&genealogy.Event{Primary: genealogy.Primary{Handle: "E3", ID: "E0003", Change: Changed(2018, 1, 1, 0, 0, 0)},
			Type: "Marriage", Date: genealogy.MustParseDate("1950-06-10"), Place: "PL1"},
		&genealogy.Event{Primary: genealogy.Primary{Handle: "E4", ID: "E0004", Change: Changed(2018, 1, 1, 0, 0, 0)},
			Type: "Birth", Date: genealogy.MustParseDate("1980")},
	)

	put(
		&genealogy.Person{
			Primary:      genealogy.Primary{Handle: "P1", ID: "I0001", Change: Changed(2019, 6, 1, 12, 0, 0)},
			Gender:       genealogy.GenderMale,
			PrimaryName:  genealogy.Name{FirstName: "Robert", Surname: "Smithson", Title: "Dr."},
			EventRefList: []genealogy.EventRef{{Handle: "E2", Role: genealogy.RolePrimary}},
			DeathRef:     "E2",
			FamilyList:   []string{"F1"},
			Complete:     true,
		},
		&genealogy.Person{
			Primary:     genealogy.Primary{Handle: "P2", ID: "I0002", Change: Changed(2020, 1, 1, 0, 0, 0)},
			Gender:      genealogy.GenderFemale,
			PrimaryName: genealogy.Name{FirstName: "Mary", Surname: "Jones", Nick: "Polly"},
			FamilyList:  []string{"F1"},
		},
		&genealogy.Person{
			Primary:          genealogy.Primary{Handle: "P3", ID: "I0003", Change: Changed(2021, 3, 15, 9, 30, 0)},
			Annotated:        genealogy.Annotated{NoteList: []string{"N1"}},
			Cited:            genealogy.Cited{CitationList: []string{"C1"}},
			Illustrated:      genealogy.Illustrated{MediaList: []genealogy.MediaRef{{Handle: "M1"}}},
			Attributed:       genealogy.Attributed{AttributeList: []genealogy.Attribute{{Type: "Occupation", Value: "Carpenter"}}},
			Gender:           genealogy.GenderMale,
			PrimaryName:      genealogy.Name{FirstName: "James", Surname: "Smithson"},
			EventRefList:     []genealogy.EventRef{{Handle: "E1", Role: genealogy.RolePrimary}},
			BirthRef:         "E1",
			FamilyList:       []string{"F2"},
			ParentFamilyList: []string{"F1"},
		},
		&genealogy.Person{
			Primary:          genealogy.Primary{Handle: "P4", ID: "I0004", Change: Changed(2018, 7, 4, 0, 0, 0), Private: true, TagList: []string{"T1"}},
			Cited:            genealogy.Cited{CitationList: []string{"C2"}},
			Gender:           genealogy.GenderFemale,
			PrimaryName:      genealogy.Name{FirstName: "Anna", Surname: "Smithson"},
			ParentFamilyList: []string{"F1"},
		},
		&genealogy.Person{
			Primary:        genealogy.Primary{Handle: "P5", ID: "I0005", Change: Changed(2022, 2, 2, 0, 0, 0)},
			Gender:         genealogy.GenderFemale,
			PrimaryName:    genealogy.Name{FirstName: "Linda", Surname: "Brown"},
			AlternateNames: []genealogy.Name{{FirstName: "Linda", Surname: "Smithson", Type: "Married Name"}},
			FamilyList:     []string{"F2"},
		},
		&genealogy.Person{
			Primary:          genealogy.Primary{Handle: "P6", ID: "I0006", Change: Changed(2019, 12, 31, 23, 59, 59)},
			Gender:           genealogy.GenderMale,
			PrimaryName:      genealogy.Name{FirstName: "Peter", Surname: "Smithson"},
			EventRefList:     []genealogy.EventRef{{Handle: "E4", Role: genealogy.RolePrimary}},
			BirthRef:         "E4",
			ParentFamilyList: []string{"F2", "F3"},
		},
		&genealogy.Person{
			Primary:     genealogy.Primary{Handle: "P7", ID: "I0007", Change: Changed(2017, 3, 3, 0, 0, 0)},
			Gender:      genealogy.GenderFemale,
			PrimaryName: genealogy.Name{FirstName: "Ruth", Surname: "Miller"},
			FamilyList:  []string{"F3"},
		},
		&genealogy.Person{
			Primary:     genealogy.Primary{Handle: "P8", ID: "I0008", Change: Changed(2016, 8, 8, 0, 0, 0)},
			Gender:      genealogy.GenderUnknown,
			PrimaryName: genealogy.Name{FirstName: "Solo"},
		},
	)

	put(
		&genealogy.Family{
			Primary:      genealogy.Primary{Handle: "F1", ID: "F0001", Change: Changed(2019, 1, 1, 0, 0, 0)},
			Attributed:   genealogy.Attributed{AttributeList: []genealogy.Attribute{{Type: "Witness", Value: "John Doe"}}},
			FatherHandle: "P1",
			MotherHandle: "P2",
			ChildRefList: []genealogy.ChildRef{{Handle: "P3"}, {Handle: "P4"}},
			Type:         "Married",
			EventRefList: []genealogy.EventRef{{Handle: "E3", Role: genealogy.RoleFamily}},
		},
		&genealogy.Family{
			Primary:      genealogy.Primary{Handle: "F2", ID: "F0002", Change: Changed(2021, 1, 1, 0, 0, 0)},
			FatherHandle: "P3",
			MotherHandle: "P5",
			ChildRefList: []genealogy.ChildRef{{Handle: "P6"}},
			Type:         "Married",
		},
		&genealogy.Family{
			Primary:      genealogy.Primary{Handle: "F3", ID: "F0003", Change: Changed(2021, 1, 1, 0, 0, 0)},
			MotherHandle: "P7",
			ChildRefList: []genealogy.ChildRef{{Handle: "P6", FatherRel: "Adopted", MotherRel: "Adopted"}},
			Type:         "Unknown",
		},
	)

	require.NoError(t, store.SetDefaultPerson(ctx, "P1"))
	require.NoError(t, store.AddBookmark(ctx, genealogy.NSPerson, "P3"))
	return store
}
