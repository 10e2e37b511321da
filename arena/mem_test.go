package arena_test

import (
	"testing"

	"github.com/dacapoday/columnar"
	"github.com/dacapoday/columnar/arena"
	"github.com/dacapoday/columnar/header"
	"github.com/stretchr/testify/require"
)

func TestAllocateTranslateRoundTrip(t *testing.T) {
	m := arena.NewMem()
	ref, blob, err := m.Allocate(32, columnar.Flags{})
	require.NoError(t, err)
	require.NotZero(t, ref)
	require.False(t, ref.IsTagged())

	blob[header.Size] = 0x42
	got, err := m.Translate(ref)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), got[header.Size])
}

func TestUpdateFromParentDetectsMutation(t *testing.T) {
	m := arena.NewMem()
	baseline := m.GetBaseline()
	defer baseline.(interface{ Release() }).Release()

	require.False(t, m.UpdateFromParent(baseline))
	_, _, err := m.Allocate(16, columnar.Flags{})
	require.NoError(t, err)
	require.True(t, m.UpdateFromParent(baseline))
}

func TestDestroyDeepRecursesOverRefsOnly(t *testing.T) {
	m := arena.NewMem()
	childRef, _, err := m.Allocate(16, columnar.Flags{})
	require.NoError(t, err)

	parentRef, parentBlob, err := m.Allocate(header.Size+16, columnar.Flags{HasRefs: true})
	require.NoError(t, err)
	// slot 0: a real child ref; slot 1: a tagged scalar that must not be followed.
	putRef(parentBlob, header.Size, uint64(childRef))
	putRef(parentBlob, header.Size+8, uint64(columnar.Tag(99)))

	require.NoError(t, m.DestroyDeep(parentRef))

	_, err = m.Translate(childRef)
	require.Error(t, err)
	_, err = m.Translate(parentRef)
	require.Error(t, err)
}

func putRef(blob []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		blob[off+i] = byte(v)
		v >>= 8
	}
}

func TestAllCheckpointReleased(t *testing.T) {
	m := arena.NewMem()
	require.True(t, m.AllCheckpointReleased())
	baseline := m.GetBaseline()
	require.False(t, m.AllCheckpointReleased())
	baseline.(interface{ Release() }).Release()
	require.True(t, m.AllCheckpointReleased())
}
