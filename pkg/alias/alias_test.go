package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndResolve(t *testing.T) {
	tbl := New(func(name string) bool { return false })
	require.Nil(t, tbl.Create("a1", "collection1"))

	target, ok := tbl.Resolve("a1")
	require.True(t, ok)
	assert.Equal(t, "collection1", target)

	_, ok = tbl.Resolve("collection1")
	assert.False(t, ok)
}

func TestCreateRejectsCollisionWithCollection(t *testing.T) {
	tbl := New(func(name string) bool { return name == "collection1" })
	err := tbl.Create("collection1", "collection2")
	require.NotNil(t, err)
}

func TestCreateRejectsDuplicateAlias(t *testing.T) {
	tbl := New(func(name string) bool { return false })
	require.Nil(t, tbl.Create("a1", "c1"))
	err := tbl.Create("a1", "c2")
	require.NotNil(t, err)
}

func TestDeleteAndRename(t *testing.T) {
	tbl := New(func(name string) bool { return false })
	require.Nil(t, tbl.Create("a1", "c1"))

	require.Nil(t, tbl.Rename("a1", "a2"))
	_, ok := tbl.Resolve("a1")
	assert.False(t, ok)
	target, ok := tbl.Resolve("a2")
	require.True(t, ok)
	assert.Equal(t, "c1", target)

	tbl.Delete("a2")
	_, ok = tbl.Resolve("a2")
	assert.False(t, ok)
}

func TestListAndListForCollection(t *testing.T) {
	tbl := New(func(name string) bool { return false })
	require.Nil(t, tbl.Create("b", "c1"))
	require.Nil(t, tbl.Create("a", "c1"))
	require.Nil(t, tbl.Create("z", "c2"))

	assert.Equal(t, []string{"a", "b", "z"}, tbl.List())
	assert.Equal(t, []string{"a", "b"}, tbl.ListForCollection("c1"))
}

func TestManyAliasesOneCollectionDisjointness(t *testing.T) {
	tbl := New(func(name string) bool { return false })
	require.Nil(t, tbl.Create("a1", "c1"))
	require.Nil(t, tbl.Create("a2", "c1"))

	r1, _ := tbl.Resolve("a1")
	r2, _ := tbl.Resolve("a2")
	assert.Equal(t, r1, r2)
}

func TestAllAndLoadAllRoundTrip(t *testing.T) {
	tbl := New(func(name string) bool { return false })
	require.Nil(t, tbl.Create("a1", "c1"))
	require.Nil(t, tbl.Create("a2", "c2"))

	snapshot := tbl.All()
	assert.Equal(t, map[string]string{"a1": "c1", "a2": "c2"}, snapshot)

	restored := New(func(name string) bool { return false })
	restored.LoadAll(snapshot)
	assert.Equal(t, []string{"a1", "a2"}, restored.List())
}
