package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracefinity/internal/bin"
	"tracefinity/internal/outline"
	"tracefinity/pkg/geometry"
)

type note struct {
	Text string `json:"text"`
}

func TestStore_SetGetDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[note](dir, "note")
	require.NoError(t, err)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("a", note{Text: "first"}))
	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Text)

	deleted, err := s.Delete("a")
	require.NoError(t, err)
	assert.Equal(t, "first", deleted.Text)
	_, err = s.Delete("a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.All())
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[note](dir, "note")
	require.NoError(t, err)
	require.NoError(t, s.Set("b", note{Text: "two"}))
	require.NoError(t, s.Set("a", note{Text: "one"}))
	assert.Equal(t, filepath.Join(dir, "notes.json"), s.Path())

	reopened, err := Open[note](dir, "note")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reopened.IDs())
	assert.Equal(t, map[string]note{"a": {Text: "one"}, "b": {Text: "two"}}, reopened.All())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are renamed away")
}

func TestStore_CorruptFileLoadsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{not json"), 0o644))

	s, err := Open[note](dir, "note")
	require.NoError(t, err)
	assert.Empty(t, s.All())

	require.NoError(t, s.Set("x", note{Text: "recovered"}))
	reopened, err := Open[note](dir, "note")
	require.NoError(t, err)
	assert.Len(t, reopened.All(), 1)
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s, err := Open[note](t.TempDir(), "note")
	require.NoError(t, err)
	require.NoError(t, s.Set("a", note{Text: "one"}))

	all := s.All()
	all["b"] = note{Text: "sneaky"}
	_, err = s.Get("b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ConcurrentSet(t *testing.T) {
	s, err := Open[note](t.TempDir(), "note")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Set(NewID(), note{Text: "n"}))
		}()
	}
	wg.Wait()
	assert.Len(t, s.All(), 20)
}

func TestNewID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}

func TestScope_UsersAreIsolated(t *testing.T) {
	root := t.TempDir()
	scope := NewScope(root)

	alice, err := scope.User("alice")
	require.NoError(t, err)
	def, err := scope.User("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DefaultUser), def.Dir)

	tool := outline.Tool{ID: "t1", Name: "pliers", Points: []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5}}}
	require.NoError(t, alice.Tools.Set(tool.ID, tool))
	_, err = def.Tools.Get(tool.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	again, err := scope.User("alice")
	require.NoError(t, err)
	assert.Same(t, alice, again)
	assert.Equal(t, filepath.Join(root, "alice", "out.stl"), alice.FilePath("out.stl"))

	_, err = scope.User("../escape")
	assert.Error(t, err)
}

func TestScope_DeleteUser(t *testing.T) {
	root := t.TempDir()
	scope := NewScope(root)

	u, err := scope.User("bob")
	require.NoError(t, err)
	require.NoError(t, u.Bins.Set("b1", Bin{ID: "b1", Config: bin.DefaultConfig()}))

	require.NoError(t, scope.DeleteUser("bob"))
	_, err = os.Stat(filepath.Join(root, "bob"))
	assert.True(t, os.IsNotExist(err))

	fresh, err := scope.User("bob")
	require.NoError(t, err)
	assert.Empty(t, fresh.Bins.All())
}

func TestBin_SyncAndPolygons(t *testing.T) {
	lib := outline.Tool{
		ID:     "t1",
		Name:   "wrench",
		Points: []geometry.Point2D{{X: -10, Y: -5}, {X: 10, Y: -5}, {X: 10, Y: 5}, {X: -10, Y: 5}},
	}
	b := Bin{ID: "b", Placements: []outline.Placement{outline.Place("p1", lib, 40, 40, 0)}}
	assert.False(t, b.Sync(map[string]outline.Tool{lib.ID: lib}))

	lib.Name = "spanner"
	lib.Points[1].X = 12
	require.True(t, b.Sync(map[string]outline.Tool{lib.ID: lib}))
	assert.Equal(t, "spanner", b.Placements[0].Name)

	polys := b.Polygons()
	require.Len(t, polys, 1)
	assert.Equal(t, "p1", polys[0].ID)
	assert.Len(t, polys[0].Points, 4)
}
