package ext2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/Revenant35/ext2-filesystem/backend"
)

const (
	// SuperblockOffset is the fixed absolute byte offset of the superblock,
	// regardless of block size.
	SuperblockOffset = 1024
	// SuperblockSize is the on-disk size of the superblock record.
	SuperblockSize = 1024
	// SuperMagic is the expected value of Superblock.Magic.
	SuperMagic = 0xEF53
	// RootInode is the inode number of the filesystem root directory.
	RootInode = 2
	// GoodOldRev is the original ext2 revision, predating a stored
	// s_inode_size: every inode on such an image is exactly 128 bytes.
	GoodOldRev = 0
	// goodOldInodeSize is the fixed inode record size on a GoodOldRev image.
	goodOldInodeSize = 128
)

// Filesystem state, see Superblock.State.
const (
	StateValid = 1
	StateError = 2
)

// Behavior on error, see Superblock.Errors.
const (
	ErrorsContinue  = 1
	ErrorsReadOnly  = 2
	ErrorsPanic     = 3
)

// rawSuperblock is the exact 1024-byte on-disk layout of the superblock,
// decoded and encoded with encoding/binary so that every reserved field
// round-trips untouched even though this design never interprets most of
// them.
type rawSuperblock struct {
	InodesCount        uint32
	BlocksCount        uint32
	RBlocksCount       uint32
	FreeBlocksCount    uint32
	FreeInodesCount    uint32
	FirstDataBlock     uint32
	LogBlockSize       uint32
	LogFragSize        uint32
	BlocksPerGroup     uint32
	FragsPerGroup      uint32
	InodesPerGroup     uint32
	Mtime              uint32
	Wtime              uint32
	MntCount           uint16
	MaxMntCount        uint16
	Magic              uint16
	State              uint16
	Errors             uint16
	MinorRevLevel      uint16
	Lastcheck          uint32
	Checkinterval      uint32
	CreatorOS          uint32
	RevLevel           uint32
	DefResuid          uint16
	DefResgid          uint16
	FirstIno           uint32
	InodeSize          uint16
	BlockGroupNr       uint16
	FeatureCompat      uint32
	FeatureIncompat    uint32
	FeatureROCompat    uint32
	UUID               [16]byte
	VolumeName         [16]byte
	LastMounted        [64]byte
	AlgoBitmap         uint32
	PreallocBlocks     uint8
	PreallocDirBlocks  uint8
	ReservedGDTBlocks  uint16
	JournalUUID        [16]byte
	JournalInum        uint32
	JournalDev         uint32
	LastOrphan         uint32
	HashSeed           [4]uint32
	DefHashVersion     uint8
	JnlBackupType      uint8
	DescSize           uint16
	DefaultMountOpts   uint32
	FirstMetaBg        uint32
	MkfsTime           uint32
	JnlBlocks          [17]uint32
	BlocksCountHi      uint32
	RBlocksCountHi     uint32
	FreeBlocksCountHi  uint32
	MinExtraIsize      uint16
	WantExtraIsize     uint16
	Flags              uint32
	RaidStride         uint16
	MmpUpdateInterval  uint16
	MmpBlock           uint64
	RaidStripeWidth    uint32
	LogGroupsPerFlex   uint8
	ChecksumType       uint8
	ReservedPad        uint16
	KbytesWritten      uint64
	SnapshotInum       uint32
	SnapshotID         uint32
	SnapshotRBlocks    uint64
	SnapshotList       uint32
	ErrorCount         uint32
	FirstErrorTime     uint32
	FirstErrorIno      uint32
	FirstErrorBlock    uint64
	FirstErrorFunc     [32]byte
	FirstErrorLine     uint32
	LastErrorTime      uint32
	LastErrorIno       uint32
	LastErrorLine      uint32
	LastErrorBlock     uint64
	LastErrorFunc      [32]byte
	MountOpts          [64]byte
	UsrQuotaInum       uint32
	GrpQuotaInum       uint32
	OverheadClusters   uint32
	BackupBgs          [2]uint32
	EncryptAlgos       [4]byte
	EncryptPwSalt      [16]byte
	LpfIno             uint32
	PrjQuotaInum       uint32
	ChecksumSeed       uint32
	Reserved           [396]byte // padding to 1024 bytes
}

// Superblock is the in-memory, caller-facing view of the ext2 superblock.
// Fields a component in this design actually reads or mutates are named and
// typed; the remainder round-trips through the embedded raw record.
type Superblock struct {
	raw rawSuperblock
}

// InodesCount returns the total number of inodes in the filesystem.
func (s *Superblock) InodesCount() uint32 { return s.raw.InodesCount }

// BlocksCount returns the total number of blocks in the filesystem.
func (s *Superblock) BlocksCount() uint32 { return s.raw.BlocksCount }

// FreeBlocksCount returns the number of unallocated blocks.
func (s *Superblock) FreeBlocksCount() uint32 { return s.raw.FreeBlocksCount }

// SetFreeBlocksCount updates the free block counter, as mutated by the allocator.
func (s *Superblock) SetFreeBlocksCount(v uint32) { s.raw.FreeBlocksCount = v }

// FreeInodesCount returns the number of unallocated inodes.
func (s *Superblock) FreeInodesCount() uint32 { return s.raw.FreeInodesCount }

// SetFreeInodesCount updates the free inode counter, as mutated by the allocator.
func (s *Superblock) SetFreeInodesCount(v uint32) { s.raw.FreeInodesCount = v }

// FirstDataBlock returns the block ID of the first data block (0 or 1).
func (s *Superblock) FirstDataBlock() uint32 { return s.raw.FirstDataBlock }

// BlocksPerGroup returns the number of blocks per block group.
func (s *Superblock) BlocksPerGroup() uint32 { return s.raw.BlocksPerGroup }

// InodesPerGroup returns the number of inodes per block group.
func (s *Superblock) InodesPerGroup() uint32 { return s.raw.InodesPerGroup }

// FirstIno returns the first non-reserved inode number.
func (s *Superblock) FirstIno() uint32 { return s.raw.FirstIno }

// InodeSize returns the on-disk stride between inode records in bytes. A
// revision 0 (GoodOldRev) image predates s_inode_size entirely, so the
// field is 0 on disk; this returns the fixed 128-byte size in that case
// rather than the raw (and otherwise offset-collapsing) field value.
func (s *Superblock) InodeSize() uint16 {
	if s.raw.RevLevel == GoodOldRev || s.raw.InodeSize == 0 {
		return goodOldInodeSize
	}
	return s.raw.InodeSize
}

// Magic returns the superblock magic number; valid images have SuperMagic.
func (s *Superblock) Magic() uint16 { return s.raw.Magic }

// UUID decodes the volume UUID.
func (s *Superblock) UUID() uuid.UUID {
	id, _ := uuid.FromBytes(s.raw.UUID[:])
	return id
}

// VolumeName returns the NUL-trimmed volume label.
func (s *Superblock) VolumeName() string {
	return cString(s.raw.VolumeName[:])
}

// LogBlockSize returns the raw s_log_block_size field.
func (s *Superblock) LogBlockSize() uint32 { return s.raw.LogBlockSize }

// BlockSize returns the filesystem's block size in bytes: 1024 << LogBlockSize.
func (s *Superblock) BlockSize() uint32 {
	return 1024 << s.raw.LogBlockSize
}

// FragmentSize returns the filesystem's fragment size in bytes.
//
// Per the original design, a negative exponent (LogFragSize treated as
// signed) shrinks rather than grows the base size; ext2 in practice always
// uses a non-negative exponent equal to LogBlockSize, so this mirrors
// get_fragment_size's unsigned left-shift.
func (s *Superblock) FragmentSize() uint32 {
	return 1024 << s.raw.LogFragSize
}

// GroupCount returns the number of block groups, computed as
// ceil(BlocksCount / BlocksPerGroup). Returns 0 if BlocksPerGroup is 0 to
// avoid a division by zero on a malformed image.
func (s *Superblock) GroupCount() uint32 {
	if s.raw.BlocksPerGroup == 0 {
		return 0
	}
	return ceilDiv(s.raw.BlocksCount, s.raw.BlocksPerGroup)
}

// groupCountByInodes mirrors count_block_groups_by_inodes, used only to
// detect the mismatch BlockGroup.c warns about.
func (s *Superblock) groupCountByInodes() uint32 {
	if s.raw.InodesPerGroup == 0 {
		return 0
	}
	return ceilDiv(s.raw.InodesCount, s.raw.InodesPerGroup)
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// ReadSuperblock reads and decodes the superblock at its fixed offset.
// It returns a BadMagic error if the magic number does not match SuperMagic.
func ReadSuperblock(s backend.Storage) (*Superblock, error) {
	if s == nil {
		return nil, &Error{Op: "ReadSuperblock", Kind: InvalidParameter, Err: fmt.Errorf("nil storage")}
	}

	buf := make([]byte, SuperblockSize)
	if _, err := readFull(s, buf, SuperblockOffset); err != nil {
		return nil, &Error{Op: "ReadSuperblock", Kind: Io, Err: err}
	}

	var raw rawSuperblock
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return nil, &Error{Op: "ReadSuperblock", Kind: Io, Err: err}
	}

	sb := &Superblock{raw: raw}
	if sb.raw.Magic != SuperMagic {
		return nil, &Error{Op: "ReadSuperblock", Kind: BadMagic, Err: fmt.Errorf("got magic 0x%04x, want 0x%04x", sb.raw.Magic, SuperMagic)}
	}

	return sb, nil
}

// WriteSuperblock encodes and writes the superblock at its fixed offset.
// It refuses to write a superblock whose magic is not SuperMagic, mirroring
// write_superblock's guard against writing corrupt in-memory state to disk.
func WriteSuperblock(s backend.Storage, sb *Superblock) error {
	if s == nil || sb == nil {
		return &Error{Op: "WriteSuperblock", Kind: InvalidParameter, Err: fmt.Errorf("nil storage or superblock")}
	}
	if sb.raw.Magic != SuperMagic {
		return &Error{Op: "WriteSuperblock", Kind: BadMagic, Err: fmt.Errorf("refusing to write superblock with magic 0x%04x", sb.raw.Magic)}
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, sb.raw); err != nil {
		return &Error{Op: "WriteSuperblock", Kind: Io, Err: err}
	}

	if _, err := s.WriteAt(buf.Bytes(), SuperblockOffset); err != nil {
		return &Error{Op: "WriteSuperblock", Kind: Io, Err: err}
	}

	return nil
}

// readFull reads exactly len(buf) bytes at off, treating a short read as an
// I/O error rather than returning a partial buffer.
func readFull(s backend.Storage, buf []byte, off int64) (int, error) {
	n, err := s.ReadAt(buf, off)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, fmt.Errorf("short read: got %d bytes, want %d", n, len(buf))
	}
	return n, nil
}
