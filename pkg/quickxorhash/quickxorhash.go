// Package quickxorhash implements QuickXorHash, the 160-bit content hash used
// by OneDrive. foldersync offers it as a fingerprint algorithm because it is
// considerably cheaper than a cryptographic digest on large trees.
//
// Each input byte is XORed into a circular 160-bit buffer; the insertion
// point advances 11 bits per byte. The byte count is XORed into the last
// eight bytes of the digest.
//
// Reference description:
// https://learn.microsoft.com/en-us/onedrive/developer/code-snippets/quickxorhash
package quickxorhash

import (
	"encoding/binary"
	"hash"
)

const (
	// Size is the length, in bytes, of a QuickXorHash digest.
	Size = 20

	// BlockSize is the preferred input block size for the hash, in bytes.
	BlockSize = 64

	shift       = 11
	widthInBits = Size * 8
)

// digest holds the circular buffer as little-endian bytes: bit k of the
// 160-bit value lives in buf[k/8] at bit k%8.
type digest struct {
	buf    [Size]byte
	pos    int // insertion point in bits, always < widthInBits
	length uint64
}

// New returns a new hash.Hash computing the QuickXorHash checksum.
func New() hash.Hash {
	return &digest{}
}

// Write absorbs more data into the running hash. It never fails.
func (d *digest) Write(p []byte) (int, error) {
	for _, b := range p {
		idx := d.pos >> 3
		off := uint(d.pos & 7)

		d.buf[idx] ^= b << off
		if off != 0 {
			d.buf[(idx+1)%Size] ^= b >> (8 - off)
		}

		d.pos += shift
		if d.pos >= widthInBits {
			d.pos -= widthInBits
		}
	}

	d.length += uint64(len(p))

	return len(p), nil
}

// Sum appends the current hash to b without changing the hash state.
func (d *digest) Sum(b []byte) []byte {
	out := d.buf

	var lengthBytes [8]byte
	binary.LittleEndian.PutUint64(lengthBytes[:], d.length)

	for i, lb := range lengthBytes {
		out[Size-len(lengthBytes)+i] ^= lb
	}

	return append(b, out[:]...)
}

// Reset resets the hash to its initial state.
func (d *digest) Reset() {
	*d = digest{}
}

// Size returns the number of bytes Sum will return.
func (d *digest) Size() int {
	return Size
}

// BlockSize returns the hash's underlying block size.
func (d *digest) BlockSize() int {
	return BlockSize
}
