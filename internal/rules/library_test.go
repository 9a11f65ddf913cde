package rules

import (
	"context"
	"testing"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
	"github.com/stretchr/testify/require"
)

func TestLibrary_EveryRuleConstructs(t *testing.T) {
	reg := NewRegistry()
	for _, info := range Library() {
		values := make([]string, len(info.Labels))
		r, err := reg.New(info.Namespace, info.Name, values, filter.Flags{})
		require.NoError(t, err, "%s %s", info.Namespace, info.Name)
		require.Equal(t, info.Name, r.Name())
		require.Equal(t, info.Labels, r.Labels())
		require.NotEmpty(t, info.Category, "%s %s", info.Namespace, info.Name)

		_, err = reg.New(info.Namespace, info.Name, append(values, "extra"), filter.Flags{})
		require.ErrorIs(t, err, filter.ErrParamCount)
	}
}

func TestLibrary_ExpectedNames(t *testing.T) {
	reg := NewRegistry()
	expected := map[genealogy.Namespace][]string{
		genealogy.NSPerson: {
			"Everyone", "IsMale", "IsFemale", "HasUnknownGender", "HasNameOf", "RegExpName", "SearchName",
			"HasIdOf", "RegExpIdOf", "ChangedSince", "HasTag", "PeoplePrivate", "IsBookmarked", "MatchesFilter",
			"HasNote", "HasNoteRegexp", "HasGallery", "HasSourceCount", "HasSourceOf", "MatchesSourceConfidence",
			"HasAttribute", "HasReferenceCountOf", "MatchesExpression", "HasBirth", "HasDeath", "NoBirthdate",
			"NoDeathdate", "HasEvent", "HasFamilyEvent", "HasFamilyAttribute", "HasRelationship", "HaveChildren",
			"NeverMarried", "MultipleMarriages", "MissingParent", "HaveAltFamilies", "Disconnected",
			"IsDefaultPerson", "HasTextMatchingSubstringOf", "MatchesEventFilter", "IsAncestorOf",
			"IsDescendantOf", "IsAncestorOfFilterMatch", "IsDescendantOfFilterMatch",
			"IsLessThanNthGenerationAncestorOf", "IsLessThanNthGenerationDescendantOf", "HasCommonAncestorWith",
			"IsChildOfFilterMatch", "IsParentOfFilterMatch", "IsSpouseOfFilterMatch", "IsSiblingOfFilterMatch",
			"IsMoreThanNthGenerationAncestorOf", "IsMoreThanNthGenerationDescendantOf", "IsDescendantFamilyOf",
			"HasCompleteRecord", "HasCommonAncestorWithFilterMatch", "RelationshipPathBetween", "PeoplePublic",
			"PersonWithIncompleteEvent", "FamilyWithIncompleteEvent", "IsRelatedWith", "IsDuplicatedAncestorOf",
			"RelationshipPathBetweenBookmarks",
		},
		genealogy.NSFamily: {
			"AllFamilies", "FamilyPrivate", "HasRelType", "HasEvent", "MatchesEventFilter",
			"RegExpFatherName", "RegExpMotherName", "RegExpChildName", "SearchFatherName", "SearchMotherName",
			"SearchChildName", "FatherHasIdOf", "MotherHasIdOf", "ChildHasIdOf", "FatherHasNameOf",
			"MotherHasNameOf", "ChildHasNameOf",
		},
		genealogy.NSEvent:      {"AllEvents", "EventPrivate", "HasType", "HasData", "HasDayOfWeek", "MatchesPersonFilter", "MatchesPlaceFilter"},
		genealogy.NSPlace:      {"AllPlaces", "PlacePrivate", "HasData", "HasNoLatOrLon"},
		genealogy.NSSource:     {"AllSources", "SourcePrivate", "HasSource", "HasRepository", "HasRepositoryCallNumberRef", "MatchesRepositoryFilter"},
		genealogy.NSCitation:   {"AllCitations", "CitationPrivate", "HasCitation", "MatchesPageSubstringOf", "MatchesSourceFilter", "MatchesSourceConfidence"},
		genealogy.NSRepository: {"AllRepos", "RepositoryPrivate", "HasRepo", "MatchesNameSubstringOf"},
		genealogy.NSNote:       {"AllNotes", "NotePrivate", "HasNote", "MatchesSubstringOf", "MatchesRegexpOf"},
		genealogy.NSMedia:      {"AllMedia", "MediaPrivate", "HasMedia", "HasSourceOf", "HasAttribute"},
	}
	for ns, names := range expected {
		for _, name := range names {
			_, ok := reg.Lookup(ns, name)
			require.True(t, ok, "%s %s not registered", ns, name)
		}
	}
}

func TestLibrary_RegexFlags(t *testing.T) {
	reg := NewRegistry()

	// Flags persist as given even where they do not change matching.
	r, err := reg.New(genealogy.NSPerson, "IsMale", nil, filter.Flags{UseRegex: true})
	require.NoError(t, err)
	require.True(t, r.Flags().UseRegex)

	r, err = reg.New(genealogy.NSNote, "MatchesRegexpOf", []string{"a("}, filter.Flags{})
	require.NoError(t, err)
	require.False(t, r.Flags().UseRegex)
	require.Error(t, filter.CheckPatterns(r), "regex rules always match by regex")

	r, err = reg.New(genealogy.NSPerson, "SearchName", []string{"a("}, filter.Flags{UseRegex: true})
	require.NoError(t, err)
	require.NoError(t, filter.CheckPatterns(r), "substring rules ignore the regex flag")

	for _, name := range []string{"RegExpName", "RegExpIdOf"} {
		info, ok := reg.Lookup(genealogy.NSPerson, name)
		require.True(t, ok, name)
		require.True(t, info.AllowRegex, name)
	}
	info, ok := reg.Lookup(genealogy.NSFamily, "RegExpFatherName")
	require.True(t, ok)
	require.True(t, info.AllowRegex)
}

func TestCounter(t *testing.T) {
	tests := []struct {
		number, mode string
		count        int
		want         bool
	}{
		{"2", "less than", 1, true},
		{"2", "lesser than", 2, false},
		{"2", "greater than", 3, true},
		{"2", "equal to", 2, true},
		{"2", "", 2, true},
		{"x", "equal to", 0, false},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, parseCounter(tc.number, tc.mode).test(tc.count), "%+v", tc)
	}
}

func TestMemberRule_AbsentMemberNeverMatches(t *testing.T) {
	reg := NewRegistry()
	r, err := reg.New(genealogy.NSFamily, "FatherHasIdOf", []string{"I0001"}, filter.Flags{})
	require.NoError(t, err)

	fam := &genealogy.Family{Primary: genealogy.Primary{Handle: "F9"}, MotherHandle: "P2"}
	require.False(t, r.Apply(context.Background(), nil, fam))
}
