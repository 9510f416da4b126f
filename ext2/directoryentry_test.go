package ext2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// P5: EXT2_DIR_REC_LEN(n) is a multiple of 4 and at least 8 + n.
func TestDirRecLenProperty(t *testing.T) {
	for n := 0; n <= NameLen; n++ {
		got := dirRecLen(n)
		require.Zerof(t, got%4, "dirRecLen(%d) = %d not 4-byte aligned", n, got)
		require.GreaterOrEqualf(t, int(got), n+dirEntryFixedSize, "dirRecLen(%d) = %d too small", n, got)
	}
}

func TestDirRecLenKnownValues(t *testing.T) {
	require.EqualValues(t, 12, dirRecLen(1))
	require.EqualValues(t, 12, dirRecLen(2))
	require.EqualValues(t, 12, dirRecLen(4))
	require.EqualValues(t, 16, dirRecLen(5))
}

func TestDirEntryCursorDecodesAndStopsOnZeroRecLen(t *testing.T) {
	block := make([]byte, 64)
	putDirEntry(block, 0, DirEntry{Inode: 2, RecLen: 12, NameLen: 1, FileType: FTDir, Name: "."})
	putDirEntry(block, 12, DirEntry{Inode: 2, RecLen: 0, NameLen: 0, FileType: 0, Name: ""})

	cursor := newDirEntryCursor(block)

	entry, ok, err := cursor.next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ".", entry.Name)

	_, ok, err = cursor.next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDirEntryCursorRejectsOversizeRecLen(t *testing.T) {
	block := make([]byte, 16)
	putDirEntry(block, 0, DirEntry{Inode: 2, RecLen: 64, NameLen: 1, FileType: FTDir, Name: "."})

	cursor := newDirEntryCursor(block)
	_, ok, err := cursor.next()
	require.Error(t, err)
	require.False(t, ok)

	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	require.Equal(t, Corruption, extErr.Kind)
}
