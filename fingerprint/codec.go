package fingerprint

import (
	"encoding/binary"
	"fmt"
)

// EncodeHashes serializes a sequence of 64-bit hashes to the on-disk
// fingerprint binary format: N 8-byte little-endian records, no header, no
// footer (spec.md §6).
func EncodeHashes(hashes []uint64) []byte {
	buf := make([]byte, len(hashes)*8)
	for i, h := range hashes {
		binary.LittleEndian.PutUint64(buf[i*8:], h)
	}
	return buf
}

// DecodeHashes parses the fingerprint binary format back into a sequence of
// 64-bit hashes. Returns an error if the length is not a multiple of 8.
func DecodeHashes(data []byte) ([]uint64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("fingerprint: binary length %d is not a multiple of 8", len(data))
	}
	n := len(data) / 8
	hashes := make([]uint64, n)
	for i := 0; i < n; i++ {
		hashes[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return hashes, nil
}
