package ext2

import (
	"encoding/binary"
	"fmt"
)

// NameLen is the maximum length of a directory entry name.
const NameLen = 255

// dirEntryFixedSize is the size of a directory entry's fixed-width header:
// inode (4) + rec_len (2) + name_len (1) + file_type (1).
const dirEntryFixedSize = 8

// Directory entry file type tags, see DirEntry.FileType.
const (
	FTUnknown = 0
	FTRegular = 1
	FTDir     = 2
	FTCharDev = 3
	FTBlkDev  = 4
	FTFIFO    = 5
	FTSocket  = 6
	FTSymlink = 7
)

// DirEntry is a single decoded directory entry.
type DirEntry struct {
	Inode    uint32
	RecLen   uint16
	NameLen  uint8
	FileType uint8
	Name     string
}

// dirRecLen returns the 4-byte-aligned record length required to hold a
// name of the given length, mirroring EXT2_DIR_REC_LEN.
func dirRecLen(nameLen int) uint16 {
	return uint16((nameLen + dirEntryFixedSize + 3) &^ 3)
}

// dirEntryCursor decodes directory entries one at a time from a bounded
// block buffer, replacing the original's raw-pointer-plus-rec_len walk with
// explicit bounds and alignment checks at each step.
type dirEntryCursor struct {
	block  []byte
	offset int
}

func newDirEntryCursor(block []byte) *dirEntryCursor {
	return &dirEntryCursor{block: block}
}

// done reports whether the cursor has reached the end of the block.
func (c *dirEntryCursor) done() bool {
	return c.offset >= len(c.block)
}

// offsetInBlock returns the cursor's current byte offset.
func (c *dirEntryCursor) offsetInBlock() int {
	return c.offset
}

// next decodes the entry at the cursor and advances by its rec_len. It
// returns ok=false, err=nil once rec_len is zero, signaling the caller to
// stop parsing this block (matching list_directory_entries' handling of a
// corrupt or terminal record) without treating it as a hard failure.
func (c *dirEntryCursor) next() (entry DirEntry, ok bool, err error) {
	if c.offset+dirEntryFixedSize > len(c.block) {
		return DirEntry{}, false, &Error{Op: "dirEntryCursor.next", Kind: Corruption, Err: fmt.Errorf("entry header at offset %d overruns block of size %d", c.offset, len(c.block))}
	}

	rec := c.block[c.offset:]
	inode := binary.LittleEndian.Uint32(rec[0:4])
	recLen := binary.LittleEndian.Uint16(rec[4:6])
	nameLen := rec[6]
	fileType := rec[7]

	if recLen == 0 {
		return DirEntry{}, false, nil
	}
	if int(recLen) < dirEntryFixedSize || c.offset+int(recLen) > len(c.block) {
		return DirEntry{}, false, &Error{Op: "dirEntryCursor.next", Kind: Corruption, Err: fmt.Errorf("entry at offset %d has invalid rec_len %d", c.offset, recLen)}
	}
	if dirEntryFixedSize+int(nameLen) > int(recLen) {
		return DirEntry{}, false, &Error{Op: "dirEntryCursor.next", Kind: Corruption, Err: fmt.Errorf("entry at offset %d has name_len %d exceeding rec_len %d", c.offset, nameLen, recLen)}
	}

	name := string(rec[dirEntryFixedSize : dirEntryFixedSize+int(nameLen)])

	entry = DirEntry{Inode: inode, RecLen: recLen, NameLen: nameLen, FileType: fileType, Name: name}
	c.offset += int(recLen)
	return entry, true, nil
}

// putDirEntry encodes entry at the given offset within block.
func putDirEntry(block []byte, offset int, entry DirEntry) {
	rec := block[offset:]
	binary.LittleEndian.PutUint32(rec[0:4], entry.Inode)
	binary.LittleEndian.PutUint16(rec[4:6], entry.RecLen)
	rec[6] = entry.NameLen
	rec[7] = entry.FileType
	copy(rec[dirEntryFixedSize:dirEntryFixedSize+int(entry.NameLen)], entry.Name)
}
