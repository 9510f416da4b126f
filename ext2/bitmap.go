package ext2

import (
	"fmt"

	"github.com/Revenant35/ext2-filesystem/backend"
)

// bitmap is a block-sized buffer of usage bits, LSB-first within each byte:
// bit_index's byte is bit_index/8, and within that byte its position is
// bit_index%8 counting from the least significant bit. 1 means in-use.
type bitmap []byte

// ReadBitmap reads one block's worth of bitmap data starting at bitmapBlock.
func ReadBitmap(s backend.Storage, sb *Superblock, bitmapBlock uint32) (bitmap, error) {
	if s == nil || sb == nil {
		return nil, &Error{Op: "ReadBitmap", Kind: InvalidParameter, Err: fmt.Errorf("nil storage or superblock")}
	}

	blockSize := sb.BlockSize()
	buf := make([]byte, blockSize)
	off := int64(bitmapBlock) * int64(blockSize)
	if _, err := readFull(s, buf, off); err != nil {
		return nil, &Error{Op: "ReadBitmap", Kind: Io, Err: err}
	}
	return bitmap(buf), nil
}

// WriteBitmap writes a bitmap block back to its block location.
func WriteBitmap(s backend.Storage, sb *Superblock, bitmapBlock uint32, bm bitmap) error {
	if s == nil || sb == nil || bm == nil {
		return &Error{Op: "WriteBitmap", Kind: InvalidParameter, Err: fmt.Errorf("nil storage, superblock or bitmap")}
	}

	off := int64(bitmapBlock) * int64(sb.BlockSize())
	if _, err := s.WriteAt(bm, off); err != nil {
		return &Error{Op: "WriteBitmap", Kind: Io, Err: err}
	}
	return nil
}

// FindFirstFreeBit scans the first sizeInBits bits of bm for the lowest
// clear bit, skipping whole bytes that are already 0xFF. It returns
// ErrNoSpace if every bit in range is set.
func FindFirstFreeBit(bm bitmap, sizeInBits uint32) (uint32, error) {
	sizeInBytes := (sizeInBits + 7) / 8
	for byteIdx := uint32(0); byteIdx < sizeInBytes && int(byteIdx) < len(bm); byteIdx++ {
		if bm[byteIdx] == 0xFF {
			continue
		}
		for bitIdx := uint32(0); bitIdx < 8; bitIdx++ {
			currentBit := byteIdx*8 + bitIdx
			if currentBit >= sizeInBits {
				break
			}
			if bm[byteIdx]>>bitIdx&1 == 0 {
				return currentBit, nil
			}
		}
	}
	return 0, &Error{Op: "FindFirstFreeBit", Kind: NoSpace, Err: fmt.Errorf("no free bit in %d-bit bitmap", sizeInBits)}
}

// SetBit marks bitIndex as in-use.
func (bm bitmap) SetBit(bitIndex uint32) {
	bm[bitIndex/8] |= 1 << (bitIndex % 8)
}

// ClearBit marks bitIndex as free.
func (bm bitmap) ClearBit(bitIndex uint32) {
	bm[bitIndex/8] &^= 1 << (bitIndex % 8)
}
