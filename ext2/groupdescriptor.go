package ext2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Revenant35/ext2-filesystem/backend"
)

// GroupDescriptorSize is the on-disk size of a single block group descriptor.
const GroupDescriptorSize = 32

// Block group flags, see GroupDescriptor.Flags.
const (
	BGInodeUninit = 0x0001
	BGBlockUninit = 0x0002
	BGInodeZeroed = 0x0004
)

// GroupDescriptor describes the metadata location and usage counters for a
// single block group. The reserved and checksum fields are decoded and
// written back verbatim; this design neither computes nor verifies them.
type GroupDescriptor struct {
	BlockBitmap      uint32
	InodeBitmap      uint32
	InodeTable       uint32
	FreeBlocksCount  uint16
	FreeInodesCount  uint16
	UsedDirsCount    uint16
	Flags            uint16
	Reserved1        uint32
	Reserved2        uint16
	Reserved3        uint16
	ItableUnused     uint16
	Checksum         uint16
}

// GroupDescriptorTable is the full array of per-group descriptors read from
// a filesystem's BGDT.
type GroupDescriptorTable struct {
	Groups []GroupDescriptor
}

// TableByteOffset returns the absolute byte offset of the BGDT: immediately
// after the superblock's own block, which is block 2 for a 1024-byte block
// size (block 0 is the boot block and the superblock occupies all of block
// 1) and block 1 otherwise (the superblock fits inside block 0's tail).
func TableByteOffset(sb *Superblock) int64 {
	if sb == nil {
		return 0
	}
	blockSize := sb.BlockSize()
	if blockSize == 1024 {
		return int64(blockSize) * 2
	}
	return int64(blockSize)
}

// DescriptorOffset returns the absolute byte offset of the groupIndex'th
// group descriptor record.
func DescriptorOffset(sb *Superblock, groupIndex uint32) int64 {
	if sb == nil {
		return 0
	}
	return int64(groupIndex)*GroupDescriptorSize + TableByteOffset(sb)
}

// groupCount returns the block-derived group count, logging a warning if it
// disagrees with the inode-derived count, mirroring get_num_block_groups.
func groupCount(log *logrus.Logger, sb *Superblock) uint32 {
	byBlocks := sb.GroupCount()
	byInodes := sb.groupCountByInodes()
	if byBlocks != byInodes {
		log.WithFields(logrus.Fields{
			"groups_by_blocks": byBlocks,
			"groups_by_inodes": byInodes,
		}).Warn("ext2: block group count differs between blocks-count and inodes-count derivations")
	}
	return byBlocks
}

// ReadGroupDescriptor reads and decodes a single group descriptor record.
func ReadGroupDescriptor(s backend.Storage, sb *Superblock, groupIndex uint32) (*GroupDescriptor, error) {
	if s == nil || sb == nil {
		return nil, &Error{Op: "ReadGroupDescriptor", Kind: InvalidParameter, Err: fmt.Errorf("nil storage or superblock")}
	}

	buf := make([]byte, GroupDescriptorSize)
	if _, err := readFull(s, buf, DescriptorOffset(sb, groupIndex)); err != nil {
		return nil, &Error{Op: "ReadGroupDescriptor", Kind: Io, Err: err}
	}

	var gd GroupDescriptor
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &gd); err != nil {
		return nil, &Error{Op: "ReadGroupDescriptor", Kind: Io, Err: err}
	}
	return &gd, nil
}

// WriteGroupDescriptor encodes and writes a single group descriptor record.
func WriteGroupDescriptor(s backend.Storage, sb *Superblock, groupIndex uint32, gd *GroupDescriptor) error {
	if s == nil || sb == nil || gd == nil {
		return &Error{Op: "WriteGroupDescriptor", Kind: InvalidParameter, Err: fmt.Errorf("nil storage, superblock or descriptor")}
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, *gd); err != nil {
		return &Error{Op: "WriteGroupDescriptor", Kind: Io, Err: err}
	}

	if _, err := s.WriteAt(buf.Bytes(), DescriptorOffset(sb, groupIndex)); err != nil {
		return &Error{Op: "WriteGroupDescriptor", Kind: Io, Err: err}
	}
	return nil
}

// ReadGroupDescriptorTable reads every group descriptor in a single bulk
// read, mirroring read_all_group_descriptors.
func ReadGroupDescriptorTable(s backend.Storage, sb *Superblock, log *logrus.Logger) (*GroupDescriptorTable, error) {
	if s == nil || sb == nil {
		return nil, &Error{Op: "ReadGroupDescriptorTable", Kind: InvalidParameter, Err: fmt.Errorf("nil storage or superblock")}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	numGroups := groupCount(log, sb)
	if numGroups == 0 {
		return nil, &Error{Op: "ReadGroupDescriptorTable", Kind: Corruption, Err: fmt.Errorf("filesystem reports 0 block groups")}
	}

	buf := make([]byte, int(numGroups)*GroupDescriptorSize)
	if _, err := readFull(s, buf, TableByteOffset(sb)); err != nil {
		return nil, &Error{Op: "ReadGroupDescriptorTable", Kind: Io, Err: err}
	}

	groups := make([]GroupDescriptor, numGroups)
	r := bytes.NewReader(buf)
	for i := range groups {
		if err := binary.Read(r, binary.LittleEndian, &groups[i]); err != nil {
			return nil, &Error{Op: "ReadGroupDescriptorTable", Kind: Io, Err: err}
		}
	}

	return &GroupDescriptorTable{Groups: groups}, nil
}

// WriteGroupDescriptorTable writes every group descriptor back to disk.
func WriteGroupDescriptorTable(s backend.Storage, sb *Superblock, t *GroupDescriptorTable) error {
	if s == nil || sb == nil || t == nil {
		return &Error{Op: "WriteGroupDescriptorTable", Kind: InvalidParameter, Err: fmt.Errorf("nil storage, superblock or table")}
	}
	for i := range t.Groups {
		if err := WriteGroupDescriptor(s, sb, uint32(i), &t.Groups[i]); err != nil {
			return err
		}
	}
	return nil
}
