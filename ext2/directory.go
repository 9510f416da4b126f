package ext2

import (
	"fmt"
	"strings"
	"time"
)

// NDirBlocks is the number of direct block pointers this design walks when
// listing, searching, or extending a directory. Indirect blocks are a
// Non-goal.
const NDirBlocks = 12

// ListDirectoryEntries decodes every in-use entry across dirInode's direct
// data blocks. A block containing a record with rec_len == 0 stops being
// parsed at that point, is logged as a warning, and the entries already
// decoded from it are still returned: corruption in one block is not fatal
// to the overall listing.
func (fs *FileSystem) ListDirectoryEntries(dirInodeNum uint32) ([]DirEntry, error) {
	dirInode, err := fs.ReadInode(dirInodeNum)
	if err != nil {
		return nil, &Error{Op: "ListDirectoryEntries", Kind: Io, Err: err}
	}
	if !dirInode.IsDirectory() {
		return nil, &Error{Op: "ListDirectoryEntries", Kind: NotADirectory, Err: fmt.Errorf("inode %d has mode 0x%04x", dirInodeNum, dirInode.Mode)}
	}

	var entries []DirEntry
	blockSize := fs.Superblock.BlockSize()

	for _, blockID := range dirInode.Block[:NDirBlocks] {
		if blockID == 0 {
			continue
		}

		buf := make([]byte, blockSize)
		if _, err := readFull(fs.Storage, buf, int64(blockID)*int64(blockSize)); err != nil {
			return nil, &Error{Op: "ListDirectoryEntries", Kind: Io, Err: fmt.Errorf("reading data block %d: %w", blockID, err)}
		}

		cursor := newDirEntryCursor(buf)
		for !cursor.done() {
			entry, ok, err := cursor.next()
			if err != nil {
				fs.Log.WithError(err).Warnf("ext2: corrupt directory entry in block %d of inode %d, stopping parse of this block", blockID, dirInodeNum)
				break
			}
			if !ok {
				fs.Log.Warnf("ext2: zero rec_len in block %d of inode %d, stopping parse of this block", blockID, dirInodeNum)
				break
			}
			if entry.Inode != 0 {
				entries = append(entries, entry)
			}
		}
	}

	return entries, nil
}

// FindEntryInDirectory searches dirInodeNum's direct blocks for an entry
// named name and returns its inode number, or ErrNotFound.
func (fs *FileSystem) FindEntryInDirectory(dirInodeNum uint32, name string) (uint32, error) {
	entries, err := fs.ListDirectoryEntries(dirInodeNum)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.Inode, nil
		}
	}
	return 0, &Error{Op: "FindEntryInDirectory", Kind: NotFound, Err: fmt.Errorf("no entry named %q in directory inode %d", name, dirInodeNum)}
}

// GetInodeForPath resolves a '/'-separated path starting at the root
// directory, walking one path component at a time through
// FindEntryInDirectory.
func (fs *FileSystem) GetInodeForPath(path string) (uint32, error) {
	if path == "" {
		return 0, &Error{Op: "GetInodeForPath", Kind: InvalidParameter, Err: fmt.Errorf("empty path")}
	}
	if path == "/" {
		return RootInode, nil
	}

	current := uint32(RootInode)
	for _, component := range strings.Split(path, "/") {
		if component == "" {
			continue
		}
		next, err := fs.FindEntryInDirectory(current, component)
		if err != nil {
			return 0, &Error{Op: "GetInodeForPath", Kind: NotFound, Err: fmt.Errorf("resolving %q: %w", path, err)}
		}
		current = next
	}
	return current, nil
}

// AddDirectoryEntry inserts a new entry into parentInode's direct blocks.
// It first looks for slack space at the tail of an existing entry (an
// entry whose rec_len is larger than its actual used length, per
// dirRecLen); failing that, it allocates a new block and links it into the
// first free direct pointer. parentInode is mutated in memory only — the
// caller is responsible for writing it back.
func (fs *FileSystem) AddDirectoryEntry(parentInode *Inode, newEntryInodeNum uint32, name string, fileType uint8) error {
	if len(name) > NameLen {
		return &Error{Op: "AddDirectoryEntry", Kind: InvalidParameter, Err: fmt.Errorf("name %q exceeds %d bytes", name, NameLen)}
	}

	blockSize := fs.Superblock.BlockSize()
	newEntryLen := dirRecLen(len(name))

	for i := 0; i < NDirBlocks; i++ {
		blockID := parentInode.Block[i]
		if blockID == 0 {
			continue
		}

		buf := make([]byte, blockSize)
		blockOffset := int64(blockID) * int64(blockSize)
		if _, err := readFull(fs.Storage, buf, blockOffset); err != nil {
			return &Error{Op: "AddDirectoryEntry", Kind: Io, Err: fmt.Errorf("reading data block %d: %w", blockID, err)}
		}

		if ok, err := insertIntoBlock(buf, newEntryInodeNum, name, fileType, newEntryLen); err != nil {
			return &Error{Op: "AddDirectoryEntry", Kind: Corruption, Err: err}
		} else if ok {
			if _, err := fs.Storage.WriteAt(buf, blockOffset); err != nil {
				return &Error{Op: "AddDirectoryEntry", Kind: Io, Err: err}
			}
			return nil
		}
	}

	return fs.addDirectoryEntryNewBlock(parentInode, newEntryInodeNum, name, fileType, newEntryLen)
}

// insertIntoBlock looks for an existing entry whose rec_len has enough
// slack beyond its actual used length to also hold newEntryLen, and if
// found, shrinks that entry and writes the new one into the freed tail.
func insertIntoBlock(block []byte, inodeNum uint32, name string, fileType uint8, newEntryLen uint16) (bool, error) {
	blockSize := len(block)
	cursor := newDirEntryCursor(block)

	for !cursor.done() {
		entryOffset := cursor.offsetInBlock()
		entry, ok, err := cursor.next()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}

		actualLen := dirRecLen(int(entry.NameLen))
		if entryOffset+int(actualLen) < blockSize && entry.RecLen >= actualLen+newEntryLen {
			oldRecLen := entry.RecLen
			entry.RecLen = actualLen
			putDirEntry(block, entryOffset, entry)

			newOffset := entryOffset + int(actualLen)
			newEntry := DirEntry{
				Inode:    inodeNum,
				RecLen:   oldRecLen - actualLen,
				NameLen:  uint8(len(name)),
				FileType: fileType,
				Name:     name,
			}
			putDirEntry(block, newOffset, newEntry)
			return true, nil
		}
	}
	return false, nil
}

// addDirectoryEntryNewBlock allocates a fresh block, links it into the
// first free direct pointer of parentInode, and writes the new entry as
// the block's sole occupant spanning the entire block.
func (fs *FileSystem) addDirectoryEntryNewBlock(parentInode *Inode, inodeNum uint32, name string, fileType uint8, _ uint16) error {
	blockSize := fs.Superblock.BlockSize()

	freeIdx := -1
	for i := 0; i < NDirBlocks; i++ {
		if parentInode.Block[i] == 0 {
			freeIdx = i
			break
		}
	}
	if freeIdx == -1 {
		return &Error{Op: "AddDirectoryEntry", Kind: NoSpace, Err: fmt.Errorf("no free direct block pointer in parent inode")}
	}

	newBlockNum, err := fs.AllocateBlock()
	if err != nil {
		return &Error{Op: "AddDirectoryEntry", Kind: NoSpace, Err: err}
	}

	parentInode.Block[freeIdx] = newBlockNum
	parentInode.Size += blockSize
	parentInode.Blocks += blockSize / 512

	buf := make([]byte, blockSize)
	putDirEntry(buf, 0, DirEntry{
		Inode:    inodeNum,
		RecLen:   uint16(blockSize),
		NameLen:  uint8(len(name)),
		FileType: fileType,
		Name:     name,
	})

	if _, err := fs.Storage.WriteAt(buf, int64(newBlockNum)*int64(blockSize)); err != nil {
		return &Error{Op: "AddDirectoryEntry", Kind: Io, Err: err}
	}
	return nil
}

// CreateDirectory allocates a new inode and data block for a directory
// named name under parentInodeNum, populates the new block with "." and
// ".." entries, links the new entry into the parent, and writes every
// mutated structure back to disk. It returns the new directory's inode
// number.
func (fs *FileSystem) CreateDirectory(parentInodeNum uint32, name string) (uint32, error) {
	if len(name) > NameLen {
		return 0, &Error{Op: "CreateDirectory", Kind: InvalidParameter, Err: fmt.Errorf("name %q exceeds %d bytes", name, NameLen)}
	}

	newInodeNum, err := fs.AllocateInode()
	if err != nil {
		return 0, &Error{Op: "CreateDirectory", Kind: NoSpace, Err: err}
	}

	newBlockNum, err := fs.AllocateBlock()
	if err != nil {
		return 0, &Error{Op: "CreateDirectory", Kind: NoSpace, Err: err}
	}

	blockSize := fs.Superblock.BlockSize()
	now := uint32(time.Now().Unix())

	newInode := &Inode{
		Mode:       ModeDirectory | 0o755,
		LinksCount: 2,
		Size:       blockSize,
		Blocks:     blockSize / 512,
		Atime:      now,
		Ctime:      now,
		Mtime:      now,
	}
	newInode.Block[0] = newBlockNum

	buf := make([]byte, blockSize)
	selfRecLen := dirRecLen(1)
	putDirEntry(buf, 0, DirEntry{Inode: newInodeNum, RecLen: selfRecLen, NameLen: 1, FileType: FTDir, Name: "."})
	putDirEntry(buf, int(selfRecLen), DirEntry{Inode: parentInodeNum, RecLen: uint16(blockSize) - selfRecLen, NameLen: 2, FileType: FTDir, Name: ".."})

	if _, err := fs.Storage.WriteAt(buf, int64(newBlockNum)*int64(blockSize)); err != nil {
		return 0, &Error{Op: "CreateDirectory", Kind: Io, Err: err}
	}

	parentInode, err := fs.ReadInode(parentInodeNum)
	if err != nil {
		return 0, &Error{Op: "CreateDirectory", Kind: Io, Err: err}
	}

	if err := fs.AddDirectoryEntry(parentInode, newInodeNum, name, FTDir); err != nil {
		return 0, err
	}
	parentInode.LinksCount++
	parentInode.Mtime = now
	parentInode.Ctime = now

	if err := fs.WriteInode(parentInodeNum, parentInode); err != nil {
		return 0, &Error{Op: "CreateDirectory", Kind: Io, Err: err}
	}
	if err := fs.WriteInode(newInodeNum, newInode); err != nil {
		return 0, &Error{Op: "CreateDirectory", Kind: Io, Err: err}
	}

	return newInodeNum, nil
}
