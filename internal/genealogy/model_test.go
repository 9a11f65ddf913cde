package genealogy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNamespace(t *testing.T) {
	ns, err := ParseNamespace("person")
	require.NoError(t, err)
	require.Equal(t, NSPerson, ns)

	_, err = ParseNamespace("Planet")
	require.ErrorIs(t, err, ErrUnknownNamespace)
}

func TestPersonJSONFlattensEmbeddedLists(t *testing.T) {
	p := &Person{
		Primary:     Primary{Handle: "h1", ID: "I0001", TagList: []string{"t1"}},
		Annotated:   Annotated{NoteList: []string{"n1"}},
		Gender:      GenderMale,
		PrimaryName: Name{FirstName: "John", Surname: "Smith"},
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "I0001", raw["gramps_id"])
	require.Contains(t, raw, "note_list")

	obj, err := NewObject(NSPerson)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, obj))
	require.Equal(t, p, obj)
}

func TestFamilyReferencesAndSpouse(t *testing.T) {
	f := &Family{
		FatherHandle: "dad",
		MotherHandle: "mom",
		ChildRefList: []ChildRef{{Handle: "kid"}},
		EventRefList: []EventRef{{Handle: "wedding"}},
	}
	require.ElementsMatch(t, []string{"dad", "mom", "kid", "wedding"}, f.References())
	require.Equal(t, "mom", f.Spouse("dad"))
	require.Equal(t, "", f.Spouse("kid"))
}

func TestChildRefIsBirth(t *testing.T) {
	require.True(t, ChildRef{}.IsBirth())
	require.False(t, ChildRef{FatherRel: "Adopted"}.IsBirth())
}
