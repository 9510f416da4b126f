package main

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Revenant35/ext2-filesystem/ext2"
	"github.com/Revenant35/ext2-filesystem/ext2/ext2test"
)

// rawSuperblockForTest mirrors ext2's on-disk superblock layout field-for-
// field, byte-for-byte, so a test fixture can be assembled from this
// package without reaching into ext2's unexported types.
type rawSuperblockForTest struct {
	InodesCount       uint32
	BlocksCount       uint32
	RBlocksCount      uint32
	FreeBlocksCount   uint32
	FreeInodesCount   uint32
	FirstDataBlock    uint32
	LogBlockSize      uint32
	LogFragSize       uint32
	BlocksPerGroup    uint32
	FragsPerGroup     uint32
	InodesPerGroup    uint32
	Mtime             uint32
	Wtime             uint32
	MntCount          uint16
	MaxMntCount       uint16
	Magic             uint16
	State             uint16
	Errors            uint16
	MinorRevLevel     uint16
	Lastcheck         uint32
	Checkinterval     uint32
	CreatorOS         uint32
	RevLevel          uint32
	DefResuid         uint16
	DefResgid         uint16
	FirstIno          uint32
	InodeSize         uint16
	BlockGroupNr      uint16
	FeatureCompat     uint32
	FeatureIncompat   uint32
	FeatureROCompat   uint32
	UUID              [16]byte
	VolumeName        [16]byte
	LastMounted       [64]byte
	AlgoBitmap        uint32
	PreallocBlocks    uint8
	PreallocDirBlocks uint8
	ReservedGDTBlocks uint16
	JournalUUID       [16]byte
	JournalInum       uint32
	JournalDev        uint32
	LastOrphan        uint32
	HashSeed          [4]uint32
	DefHashVersion    uint8
	JnlBackupType     uint8
	DescSize          uint16
	DefaultMountOpts  uint32
	FirstMetaBg       uint32
	MkfsTime          uint32
	JnlBlocks         [17]uint32
	BlocksCountHi     uint32
	RBlocksCountHi    uint32
	FreeBlocksCountHi uint32
	MinExtraIsize     uint16
	WantExtraIsize    uint16
	Flags             uint32
	RaidStride        uint16
	MmpUpdateInterval uint16
	MmpBlock          uint64
	RaidStripeWidth   uint32
	LogGroupsPerFlex  uint8
	ChecksumType      uint8
	ReservedPad       uint16
	KbytesWritten     uint64
	SnapshotInum      uint32
	SnapshotID        uint32
	SnapshotRBlocks   uint64
	SnapshotList      uint32
	ErrorCount        uint32
	FirstErrorTime    uint32
	FirstErrorIno     uint32
	FirstErrorBlock   uint64
	FirstErrorFunc    [32]byte
	FirstErrorLine    uint32
	LastErrorTime     uint32
	LastErrorIno      uint32
	LastErrorLine     uint32
	LastErrorBlock    uint64
	LastErrorFunc     [32]byte
	MountOpts         [64]byte
	UsrQuotaInum      uint32
	GrpQuotaInum      uint32
	OverheadClusters  uint32
	BackupBgs         [2]uint32
	EncryptAlgos      [4]byte
	EncryptPwSalt     [16]byte
	LpfIno            uint32
	PrjQuotaInum      uint32
	ChecksumSeed      uint32
	_                 [396]byte
}

const (
	testBlockSize     = 1024
	testBlocksCount   = 32
	testInodesCount   = 16
	testBlockBitmap   = 3
	testInodeBitmap   = 4
	testInodeTable    = 5
	testRootDataBlock = 9
	testUsedBlocks    = 9
	testUsedInodes    = 10
)

func putDirEntryForTest(block []byte, offset int, inode uint32, fileType uint8, name string) int {
	recLen := (len(name) + 8 + 3) &^ 3
	binary.LittleEndian.PutUint32(block[offset:offset+4], inode)
	binary.LittleEndian.PutUint16(block[offset+4:offset+6], uint16(recLen))
	block[offset+6] = uint8(len(name))
	block[offset+7] = fileType
	copy(block[offset+8:offset+8+len(name)], name)
	return recLen
}

// buildShellFixture assembles a minimal single-group ext2 image, writing
// every structure directly through exported ext2 functions plus raw byte
// layout (mirroring ext2/fixture_test.go's approach, but from outside the
// ext2 package), and opens it.
func buildShellFixture(t *testing.T) *ext2.FileSystem {
	t.Helper()

	storage := ext2test.NewMemStorage(testBlocksCount * testBlockSize)

	raw := rawSuperblockForTest{
		InodesCount:     testInodesCount,
		BlocksCount:     testBlocksCount,
		FreeBlocksCount: testBlocksCount - testUsedBlocks,
		FreeInodesCount: testInodesCount - testUsedInodes,
		FirstDataBlock:  1,
		BlocksPerGroup:  testBlocksCount,
		FragsPerGroup:   testBlocksCount,
		InodesPerGroup:  testInodesCount,
		Magic:           ext2.SuperMagic,
		State:           ext2.StateValid,
		Errors:          ext2.ErrorsContinue,
		FirstIno:        11,
		InodeSize:       ext2.InodeSize,
		RevLevel:        1,
	}
	var sbBuf bytes.Buffer
	require.NoError(t, binary.Write(&sbBuf, binary.LittleEndian, raw))
	_, err := storage.WriteAt(sbBuf.Bytes(), ext2.SuperblockOffset)
	require.NoError(t, err)

	sb, err := ext2.ReadSuperblock(storage)
	require.NoError(t, err)

	gdt := &ext2.GroupDescriptorTable{Groups: []ext2.GroupDescriptor{
		{
			BlockBitmap:     testBlockBitmap,
			InodeBitmap:     testInodeBitmap,
			InodeTable:      testInodeTable,
			FreeBlocksCount: testBlocksCount - testUsedBlocks,
			FreeInodesCount: testInodesCount - testUsedInodes,
			UsedDirsCount:   1,
		},
	}}
	require.NoError(t, ext2.WriteGroupDescriptorTable(storage, sb, gdt))

	blockBitmap := make([]byte, testBlockSize)
	for i := uint32(0); i < testUsedBlocks; i++ {
		blockBitmap[i/8] |= 1 << (i % 8)
	}
	_, err = storage.WriteAt(blockBitmap, testBlockBitmap*testBlockSize)
	require.NoError(t, err)

	inodeBitmap := make([]byte, testBlockSize)
	for i := uint32(0); i < testUsedInodes; i++ {
		inodeBitmap[i/8] |= 1 << (i % 8)
	}
	_, err = storage.WriteAt(inodeBitmap, testInodeBitmap*testBlockSize)
	require.NoError(t, err)

	rootInode := &ext2.Inode{
		Mode:       ext2.ModeDirectory | 0o755,
		LinksCount: 2,
		Size:       testBlockSize,
		Blocks:     testBlockSize / 512,
	}
	rootInode.Block[0] = testRootDataBlock
	require.NoError(t, ext2.WriteInode(storage, sb, gdt, ext2.RootInode, rootInode))

	rootBlock := make([]byte, testBlockSize)
	selfLen := putDirEntryForTest(rootBlock, 0, ext2.RootInode, ext2.FTDir, ".")
	binary.LittleEndian.PutUint32(rootBlock[selfLen:selfLen+4], ext2.RootInode)
	binary.LittleEndian.PutUint16(rootBlock[selfLen+4:selfLen+6], uint16(testBlockSize-selfLen))
	rootBlock[selfLen+6] = 2
	rootBlock[selfLen+7] = ext2.FTDir
	copy(rootBlock[selfLen+8:selfLen+10], "..")
	_, err = storage.WriteAt(rootBlock, testRootDataBlock*testBlockSize)
	require.NoError(t, err)

	fs, err := ext2.Open(storage)
	require.NoError(t, err)
	return fs
}

func TestShellLsRendersRootEntries(t *testing.T) {
	fs := buildShellFixture(t)
	var out bytes.Buffer

	sh := newShell(fs, strings.NewReader("ls\nexit\n"), &out)
	sh.run()

	require.Contains(t, out.String(), ".")
	require.Contains(t, out.String(), "..")
}

func TestShellStatPrintsRootInode(t *testing.T) {
	fs := buildShellFixture(t)
	var out bytes.Buffer

	sh := newShell(fs, strings.NewReader("stat /\nexit\n"), &out)
	sh.run()

	require.Contains(t, out.String(), "Inode: 2")
	require.Contains(t, out.String(), "Links: 2")
}

func TestShellExitTerminatesLoop(t *testing.T) {
	fs := buildShellFixture(t)
	var out bytes.Buffer

	sh := newShell(fs, strings.NewReader("quit\n"), &out)
	sh.run()

	require.Contains(t, out.String(), "Exiting shell.")
}

func TestShellEOFTerminatesLoop(t *testing.T) {
	fs := buildShellFixture(t)
	var out bytes.Buffer

	sh := newShell(fs, strings.NewReader(""), &out)
	sh.run() // must return instead of looping forever
}

func TestShellStatRequiresPath(t *testing.T) {
	fs := buildShellFixture(t)
	var out bytes.Buffer

	sh := newShell(fs, strings.NewReader("stat\nexit\n"), &out)
	sh.run()

	require.NotContains(t, out.String(), "Inode:")
}
