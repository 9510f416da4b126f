package ext2

import (
	"fmt"
)

// AllocateInode finds the first block group with a free inode, marks it
// used in that group's inode bitmap, and writes the bitmap, the group
// descriptor, and the superblock back to disk in that order. It returns the
// 1-based number of the newly allocated inode.
//
// There is no rollback if a write fails partway through: a failure after
// the bitmap write but before the superblock write leaves the image
// momentarily inconsistent, mirroring allocate_inode's own lack of
// transactional guarantees.
func (fs *FileSystem) AllocateInode() (uint32, error) {
	for groupIdx := range fs.GroupDescriptors.Groups {
		group := &fs.GroupDescriptors.Groups[groupIdx]
		if group.FreeInodesCount == 0 {
			continue
		}

		bm, err := ReadBitmap(fs.Storage, fs.Superblock, group.InodeBitmap)
		if err != nil {
			return 0, &Error{Op: "AllocateInode", Kind: Io, Err: fmt.Errorf("reading inode bitmap for group %d: %w", groupIdx, err)}
		}

		freeBit, err := FindFirstFreeBit(bm, fs.Superblock.InodesPerGroup())
		if err != nil {
			return 0, &Error{Op: "AllocateInode", Kind: NoSpace, Err: fmt.Errorf("group %d reports free inodes but bitmap has none: %w", groupIdx, err)}
		}

		bm.SetBit(freeBit)

		if err := WriteBitmap(fs.Storage, fs.Superblock, group.InodeBitmap, bm); err != nil {
			return 0, &Error{Op: "AllocateInode", Kind: Io, Err: fmt.Errorf("writing inode bitmap for group %d: %w", groupIdx, err)}
		}

		group.FreeInodesCount--
		fs.Superblock.SetFreeInodesCount(fs.Superblock.FreeInodesCount() - 1)

		if err := WriteGroupDescriptor(fs.Storage, fs.Superblock, uint32(groupIdx), group); err != nil {
			return 0, &Error{Op: "AllocateInode", Kind: Io, Err: err}
		}
		if err := WriteSuperblock(fs.Storage, fs.Superblock); err != nil {
			return 0, &Error{Op: "AllocateInode", Kind: Io, Err: err}
		}

		return uint32(groupIdx)*fs.Superblock.InodesPerGroup() + freeBit + 1, nil
	}

	return 0, &Error{Op: "AllocateInode", Kind: NoSpace, Err: fmt.Errorf("no free inodes in any block group")}
}

// AllocateBlock finds the first block group with a free block, marks it
// used in that group's block bitmap, and writes the bitmap, the group
// descriptor, and the superblock back to disk in that order. It returns the
// resulting block number.
//
// The free-bit scan is bounded by s_blocks_per_group. An earlier revision
// of this allocator scanned s_inodes_per_group instead, which silently
// truncated or over-extended the scan on any filesystem where the two
// per-group counts differ; this implementation uses the correct bound.
func (fs *FileSystem) AllocateBlock() (uint32, error) {
	for groupIdx := range fs.GroupDescriptors.Groups {
		group := &fs.GroupDescriptors.Groups[groupIdx]
		if group.FreeBlocksCount == 0 {
			continue
		}

		bm, err := ReadBitmap(fs.Storage, fs.Superblock, group.BlockBitmap)
		if err != nil {
			return 0, &Error{Op: "AllocateBlock", Kind: Io, Err: fmt.Errorf("reading block bitmap for group %d: %w", groupIdx, err)}
		}

		freeBit, err := FindFirstFreeBit(bm, fs.Superblock.BlocksPerGroup())
		if err != nil {
			return 0, &Error{Op: "AllocateBlock", Kind: NoSpace, Err: fmt.Errorf("group %d reports free blocks but bitmap has none: %w", groupIdx, err)}
		}

		bm.SetBit(freeBit)

		if err := WriteBitmap(fs.Storage, fs.Superblock, group.BlockBitmap, bm); err != nil {
			return 0, &Error{Op: "AllocateBlock", Kind: Io, Err: fmt.Errorf("writing block bitmap for group %d: %w", groupIdx, err)}
		}

		group.FreeBlocksCount--
		fs.Superblock.SetFreeBlocksCount(fs.Superblock.FreeBlocksCount() - 1)

		if err := WriteGroupDescriptor(fs.Storage, fs.Superblock, uint32(groupIdx), group); err != nil {
			return 0, &Error{Op: "AllocateBlock", Kind: Io, Err: err}
		}
		if err := WriteSuperblock(fs.Storage, fs.Superblock); err != nil {
			return 0, &Error{Op: "AllocateBlock", Kind: Io, Err: err}
		}

		return uint32(groupIdx)*fs.Superblock.BlocksPerGroup() + fs.Superblock.FirstDataBlock() + freeBit, nil
	}

	return 0, &Error{Op: "AllocateBlock", Kind: NoSpace, Err: fmt.Errorf("no free blocks in any block group")}
}
