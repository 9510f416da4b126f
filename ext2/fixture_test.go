package ext2

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Revenant35/ext2-filesystem/ext2test"
)

// Fixture layout (block size 1024, single group):
//
//	block 0: boot block, unused
//	block 1: superblock (byte offset 1024)
//	block 2: block group descriptor table
//	block 3: block bitmap
//	block 4: inode bitmap
//	blocks 5-8: inode table (32 inodes * 128 bytes = 4096 bytes = 4 blocks)
//	block 9: root directory data block
//	blocks 10-63: free
const (
	fixtureBlockSize      = 1024
	fixtureBlocksCount    = 64
	fixtureInodesCount    = 32
	fixtureBlocksPerGroup = 64
	fixtureInodesPerGroup = 32
	fixtureBlockBitmap    = 3
	fixtureInodeBitmap    = 4
	fixtureInodeTable     = 5
	fixtureInodeTableLen  = 4
	fixtureRootDataBlock  = 9
	fixtureUsedBlocks     = 9  // blocks 1..9 inclusive
	fixtureUsedInodes     = 10 // inodes 1..10 reserved
)

// buildFixture assembles a minimal, internally consistent single-group
// ext2 image in memory and returns it both as an opened *FileSystem and as
// the backing storage, so tests can inspect raw bytes directly.
func buildFixture(t *testing.T) (*FileSystem, *ext2test.MemStorage) {
	t.Helper()

	storage := ext2test.NewMemStorage(fixtureBlocksCount * fixtureBlockSize)

	sb := &Superblock{raw: rawSuperblock{
		InodesCount:     fixtureInodesCount,
		BlocksCount:     fixtureBlocksCount,
		FreeBlocksCount: fixtureBlocksCount - fixtureUsedBlocks,
		FreeInodesCount: fixtureInodesCount - fixtureUsedInodes,
		FirstDataBlock:  1,
		LogBlockSize:    0, // 1024 << 0 == 1024
		LogFragSize:     0,
		BlocksPerGroup:  fixtureBlocksPerGroup,
		FragsPerGroup:   fixtureBlocksPerGroup,
		InodesPerGroup:  fixtureInodesPerGroup,
		Magic:           SuperMagic,
		State:           StateValid,
		Errors:          ErrorsContinue,
		FirstIno:        11,
		InodeSize:       InodeSize,
		RevLevel:        1,
	}}
	if err := WriteSuperblock(storage, sb); err != nil {
		t.Fatalf("seeding superblock: %v", err)
	}

	gdt := &GroupDescriptorTable{Groups: []GroupDescriptor{
		{
			BlockBitmap:     fixtureBlockBitmap,
			InodeBitmap:     fixtureInodeBitmap,
			InodeTable:      fixtureInodeTable,
			FreeBlocksCount: fixtureBlocksCount - fixtureUsedBlocks,
			FreeInodesCount: fixtureInodesCount - fixtureUsedInodes,
			UsedDirsCount:   1,
		},
	}}
	if err := WriteGroupDescriptorTable(storage, sb, gdt); err != nil {
		t.Fatalf("seeding group descriptor table: %v", err)
	}

	blockBitmap := make(bitmap, fixtureBlockSize)
	for i := uint32(0); i < fixtureUsedBlocks; i++ {
		blockBitmap.SetBit(i)
	}
	if err := WriteBitmap(storage, sb, fixtureBlockBitmap, blockBitmap); err != nil {
		t.Fatalf("seeding block bitmap: %v", err)
	}

	inodeBitmap := make(bitmap, fixtureBlockSize)
	for i := uint32(0); i < fixtureUsedInodes; i++ {
		inodeBitmap.SetBit(i)
	}
	if err := WriteBitmap(storage, sb, fixtureInodeBitmap, inodeBitmap); err != nil {
		t.Fatalf("seeding inode bitmap: %v", err)
	}

	rootInode := &Inode{
		Mode:       ModeDirectory | 0o755,
		LinksCount: 2,
		Size:       fixtureBlockSize,
		Blocks:     fixtureBlockSize / 512,
	}
	rootInode.Block[0] = fixtureRootDataBlock
	if err := WriteInode(storage, sb, gdt, RootInode, rootInode); err != nil {
		t.Fatalf("seeding root inode: %v", err)
	}

	rootBlock := make([]byte, fixtureBlockSize)
	selfRecLen := dirRecLen(1)
	putDirEntry(rootBlock, 0, DirEntry{Inode: RootInode, RecLen: selfRecLen, NameLen: 1, FileType: FTDir, Name: "."})
	putDirEntry(rootBlock, int(selfRecLen), DirEntry{Inode: RootInode, RecLen: uint16(fixtureBlockSize) - selfRecLen, NameLen: 2, FileType: FTDir, Name: ".."})
	if _, err := storage.WriteAt(rootBlock, fixtureRootDataBlock*fixtureBlockSize); err != nil {
		t.Fatalf("seeding root directory block: %v", err)
	}

	fs, err := Open(storage)
	if err != nil {
		t.Fatalf("opening fixture: %v", err)
	}
	fs.Log.SetLevel(logrus.DebugLevel)

	return fs, storage
}
