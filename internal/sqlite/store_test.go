package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rpggio/lineage/internal/genealogy"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewTestDB(t))
}

func TestStore_PutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &genealogy.Person{
		Primary:     genealogy.Primary{Handle: "p1", ID: "I0001", Change: 100},
		Gender:      genealogy.GenderFemale,
		PrimaryName: genealogy.Name{FirstName: "Ada", Surname: "Byron"},
	}
	require.NoError(t, store.Put(ctx, p))

	obj, err := store.Get(ctx, genealogy.NSPerson, "p1")
	require.NoError(t, err)
	require.Equal(t, p, obj)

	byID, err := store.GetByID(ctx, genealogy.NSPerson, "I0001")
	require.NoError(t, err)
	require.Equal(t, "p1", byID.Base().Handle)

	_, err = store.Get(ctx, genealogy.NSFamily, "p1")
	require.ErrorIs(t, err, genealogy.ErrNotFound)
	_, err = store.GetByID(ctx, genealogy.NSPerson, "I9999")
	require.ErrorIs(t, err, genealogy.ErrNotFound)
}

func TestStore_PutAssignsHandle(t *testing.T) {
	store := newTestStore(t)
	note := &genealogy.Note{Primary: genealogy.Primary{ID: "N0001"}, Text: "hello"}
	require.NoError(t, store.Put(context.Background(), note))
	require.NotEmpty(t, note.Handle)
}

func TestStore_HandlesOrderedByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"I0003", "I0001", "I0002"} {
		require.NoError(t, store.Put(ctx, &genealogy.Person{Primary: genealogy.Primary{Handle: "h" + id, ID: id}}))
	}

	handles, err := store.Handles(ctx, genealogy.NSPerson)
	require.NoError(t, err)
	require.Equal(t, []string{"hI0001", "hI0002", "hI0003"}, handles)

	var seen []string
	err = store.Iterate(ctx, genealogy.NSPerson, func(obj genealogy.Object) error {
		seen = append(seen, obj.Base().ID)
		// nested lookups are allowed during iteration
		_, err := store.Get(ctx, genealogy.NSPerson, obj.Base().Handle)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []string{"I0001", "I0002", "I0003"}, seen)

	stop := errors.New("stop")
	count := 0
	err = store.Iterate(ctx, genealogy.NSPerson, func(genealogy.Object) error {
		count++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, count)
}

func TestStore_ReferenceCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &genealogy.Note{Primary: genealogy.Primary{Handle: "n1", ID: "N1"}}))
	require.NoError(t, store.Put(ctx, &genealogy.Person{
		Primary:   genealogy.Primary{Handle: "p1", ID: "I1"},
		Annotated: genealogy.Annotated{NoteList: []string{"n1", "n1"}},
	}))
	require.NoError(t, store.Put(ctx, &genealogy.Event{
		Primary:   genealogy.Primary{Handle: "e1", ID: "E1"},
		Annotated: genealogy.Annotated{NoteList: []string{"n1"}},
	}))

	count, err := store.ReferenceCount(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// replacing a record rewrites its outgoing references
	require.NoError(t, store.Put(ctx, &genealogy.Event{Primary: genealogy.Primary{Handle: "e1", ID: "E1"}}))
	count, err = store.ReferenceCount(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, store.Delete(ctx, genealogy.NSPerson, "p1"))
	count, err = store.ReferenceCount(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	require.ErrorIs(t, store.Delete(ctx, genealogy.NSPerson, "p1"), genealogy.ErrNotFound)
}

func TestStore_TagsBookmarksDefaultPerson(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutTag(ctx, &genealogy.Tag{Handle: "t1", Name: "ToDo"}))
	err := store.PutTag(ctx, &genealogy.Tag{Handle: "t2", Name: "ToDo"})
	require.ErrorIs(t, err, ErrDuplicate)

	tag, err := store.TagFromName(ctx, "ToDo")
	require.NoError(t, err)
	require.Equal(t, "t1", tag.Handle)
	_, err = store.TagFromName(ctx, "Missing")
	require.ErrorIs(t, err, genealogy.ErrNotFound)

	handle, err := store.DefaultPersonHandle(ctx)
	require.NoError(t, err)
	require.Empty(t, handle)
	require.NoError(t, store.SetDefaultPerson(ctx, "p1"))
	require.NoError(t, store.SetDefaultPerson(ctx, "p2"))
	handle, err = store.DefaultPersonHandle(ctx)
	require.NoError(t, err)
	require.Equal(t, "p2", handle)

	require.NoError(t, store.AddBookmark(ctx, genealogy.NSPerson, "p2"))
	require.NoError(t, store.AddBookmark(ctx, genealogy.NSPerson, "p1"))
	require.NoError(t, store.AddBookmark(ctx, genealogy.NSPerson, "p2"))
	marks, err := store.Bookmarks(ctx, genealogy.NSPerson)
	require.NoError(t, err)
	require.Equal(t, []string{"p2", "p1"}, marks)
}

func TestStore_Import(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dump := `{
		"records": {
			"Person": [{"handle": "p1", "gramps_id": "I0001", "gender": 1, "primary_name": {"first_name": "Tom"}}],
			"Event": [{"handle": "e1", "gramps_id": "E0001", "type": "Birth", "date": "1900-01-01"}]
		},
		"tags": [{"handle": "t1", "name": "ToDo"}],
		"default_person": "p1",
		"bookmarks": {"Person": ["p1"]}
	}`
	n, err := store.Import(ctx, strings.NewReader(dump))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ev, err := genealogy.GetEvent(ctx, store, "e1")
	require.NoError(t, err)
	require.Equal(t, genealogy.MustParseDate("1900-01-01"), ev.Date)

	handle, err := store.DefaultPersonHandle(ctx)
	require.NoError(t, err)
	require.Equal(t, "p1", handle)

	_, err = store.Import(ctx, strings.NewReader(`{"records": {"Planet": [{}]}}`))
	require.ErrorIs(t, err, genealogy.ErrUnknownNamespace)
}
