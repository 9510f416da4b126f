// Package ext2 implements a read/write ext2 filesystem metadata engine:
// superblock, block group descriptor, bitmap, and inode codecs, a
// bitmap-backed allocator, and a directory mutation engine. It does not
// implement indirect block traversal, journaling, permission enforcement,
// or any feature named as a Non-goal of this design.
package ext2

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Revenant35/ext2-filesystem/backend"
)

// FileSystem is the single handle through which every operation in this
// package is reached. It owns the backing storage and the in-memory
// superblock and block group descriptor table.
//
// FileSystem is not safe for concurrent use: callers that need concurrent
// access must serialize it themselves, the same contract
// filesystem.FileSystem implementations in the wider ecosystem carry.
type FileSystem struct {
	Storage          backend.Storage
	Superblock       *Superblock
	GroupDescriptors *GroupDescriptorTable
	Log              *logrus.Logger
}

// Open reads the superblock and full block group descriptor table from an
// already-open backend and returns a ready-to-use FileSystem.
func Open(s backend.Storage) (*FileSystem, error) {
	if s == nil {
		return nil, &Error{Op: "Open", Kind: InvalidParameter, Err: fmt.Errorf("nil storage")}
	}

	log := logrus.StandardLogger()

	sb, err := ReadSuperblock(s)
	if err != nil {
		return nil, err
	}

	gdt, err := ReadGroupDescriptorTable(s, sb, log)
	if err != nil {
		return nil, err
	}

	return &FileSystem{
		Storage:          s,
		Superblock:       sb,
		GroupDescriptors: gdt,
		Log:              log,
	}, nil
}

// Close releases the underlying backend.
func (fs *FileSystem) Close() error {
	return fs.Storage.Close()
}

// ReadInode reads a single inode by number.
func (fs *FileSystem) ReadInode(inodeNum uint32) (*Inode, error) {
	return ReadInode(fs.Storage, fs.Superblock, fs.GroupDescriptors, inodeNum)
}

// WriteInode writes a single inode by number.
func (fs *FileSystem) WriteInode(inodeNum uint32, in *Inode) error {
	return WriteInode(fs.Storage, fs.Superblock, fs.GroupDescriptors, inodeNum, in)
}
