package ext2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Revenant35/ext2-filesystem/backend"
)

// InodeSize is the fixed on-disk size this design reads and writes for
// every inode, regardless of a larger Superblock.InodeSize() on the image.
const InodeSize = 128

// NBlocks is the number of entries in Inode.Block: 12 direct pointers, one
// singly-indirect, one doubly-indirect, one triply-indirect.
const NBlocks = 15

// File type bits of Inode.Mode, masked with ModeFormatMask.
const (
	ModeFormatMask = 0xF000
	ModeSocket     = 0xC000
	ModeSymlink    = 0xA000
	ModeRegular    = 0x8000
	ModeBlockDev   = 0x6000
	ModeDirectory  = 0x4000
	ModeCharDev    = 0x2000
	ModeFIFO       = 0x1000
)

// Inode mirrors ext2_inode field-for-field. Osd1 and Osd2 are carried as raw
// bytes: no operation in this design depends on their OS-specific
// interpretation.
type Inode struct {
	Mode        uint16
	UID         uint16
	Size        uint32
	Atime       uint32
	Ctime       uint32
	Mtime       uint32
	Dtime       uint32
	GID         uint16
	LinksCount  uint16
	Blocks      uint32
	Flags       uint32
	Osd1        uint32
	Block       [NBlocks]uint32
	Generation  uint32
	FileACL     uint32
	DirACL      uint32
	Faddr       uint32
	Osd2        [12]byte
}

// IsDirectory reports whether the inode's mode bits mark it a directory.
func (i *Inode) IsDirectory() bool {
	return i.Mode&ModeFormatMask == ModeDirectory
}

// inodeDiskOffset computes the absolute byte offset of inodeNum's on-disk
// record, mirroring calculate_inode_disk_offset.
func inodeDiskOffset(sb *Superblock, t *GroupDescriptorTable, inodeNum uint32) (int64, error) {
	if inodeNum == 0 {
		return 0, &Error{Op: "InodeDiskOffset", Kind: InvalidParameter, Err: fmt.Errorf("inode number 0 is invalid")}
	}
	if inodeNum > sb.InodesCount() {
		return 0, &Error{Op: "InodeDiskOffset", Kind: InvalidParameter, Err: fmt.Errorf("inode %d exceeds total inodes %d", inodeNum, sb.InodesCount())}
	}

	inodeIndex := inodeNum - 1
	blockGroupNum := inodeIndex / sb.InodesPerGroup()
	inodeIndexInGroup := inodeIndex % sb.InodesPerGroup()

	if int(blockGroupNum) >= len(t.Groups) {
		return 0, &Error{Op: "InodeDiskOffset", Kind: Corruption, Err: fmt.Errorf("computed block group %d is out of bounds (have %d)", blockGroupNum, len(t.Groups))}
	}

	group := t.Groups[blockGroupNum]
	blockSize := int64(sb.BlockSize())
	inodeTableStart := int64(group.InodeTable) * blockSize
	// The stride between inode records uses the superblock's s_inode_size,
	// which may exceed InodeSize on a revision-1+ filesystem; only the base
	// InodeSize bytes are ever read or written (see ReadInode/WriteInode).
	offsetInTable := int64(inodeIndexInGroup) * int64(sb.InodeSize())

	return inodeTableStart + offsetInTable, nil
}

// ReadInode reads and decodes a single inode record (1-based inodeNum).
func ReadInode(s backend.Storage, sb *Superblock, t *GroupDescriptorTable, inodeNum uint32) (*Inode, error) {
	if s == nil || sb == nil || t == nil {
		return nil, &Error{Op: "ReadInode", Kind: InvalidParameter, Err: fmt.Errorf("nil storage, superblock or group descriptor table")}
	}

	off, err := inodeDiskOffset(sb, t, inodeNum)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, InodeSize)
	if _, err := readFull(s, buf, off); err != nil {
		return nil, &Error{Op: "ReadInode", Kind: Io, Err: err}
	}

	var in Inode
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &in); err != nil {
		return nil, &Error{Op: "ReadInode", Kind: Io, Err: err}
	}
	return &in, nil
}

// WriteInode encodes and writes a single inode record (1-based inodeNum).
func WriteInode(s backend.Storage, sb *Superblock, t *GroupDescriptorTable, inodeNum uint32, in *Inode) error {
	if s == nil || sb == nil || t == nil || in == nil {
		return &Error{Op: "WriteInode", Kind: InvalidParameter, Err: fmt.Errorf("nil storage, superblock, group descriptor table or inode")}
	}

	off, err := inodeDiskOffset(sb, t, inodeNum)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, *in); err != nil {
		return &Error{Op: "WriteInode", Kind: Io, Err: err}
	}

	if _, err := s.WriteAt(buf.Bytes(), off); err != nil {
		return &Error{Op: "WriteInode", Kind: Io, Err: err}
	}
	return nil
}
