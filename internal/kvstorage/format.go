package kvstorage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"slices"

	"github.com/google/uuid"
)

// Partition file layout, little-endian:
//
//	magic      [4]byte "KVS1"
//	version    uint32
//	generation [16]byte
//	count      uint32
//	count x { keyLen uint32, key, valueLen uint64, value }
//	crc32      uint32 (IEEE, over every preceding byte)
const (
	formatVersion = 1
	headerSize    = 4 + 4 + 16 + 4
	trailerSize   = 4
)

var formatMagic = [4]byte{'K', 'V', 'S', '1'}

type partition struct {
	generation uuid.UUID
	entries    map[string][]byte
}

// encodePartition serialises entries in key order so identical contents
// produce identical files apart from the generation.
func encodePartition(gen uuid.UUID, entries map[string][]byte) []byte {
	keys := make([]string, 0, len(entries))
	size := headerSize + trailerSize
	for k, v := range entries {
		keys = append(keys, k)
		size += 4 + len(k) + 8 + len(v)
	}
	slices.Sort(keys)

	buf := make([]byte, 0, size)
	buf = append(buf, formatMagic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, formatVersion)
	buf = append(buf, gen[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		v := entries[k]
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(k)))
		buf = append(buf, k...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(v)))
		buf = append(buf, v...)
	}
	return binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
}

// decodePartition parses data. Returned values alias data.
func decodePartition(data []byte) (partition, error) {
	if len(data) < headerSize+trailerSize {
		return partition{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if [4]byte(data[:4]) != formatMagic {
		return partition{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != formatVersion {
		return partition{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	body := data[:len(data)-trailerSize]
	want := binary.LittleEndian.Uint32(data[len(data)-trailerSize:])
	if crc32.ChecksumIEEE(body) != want {
		return partition{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var p partition
	copy(p.generation[:], data[8:24])
	count := binary.LittleEndian.Uint32(data[24:28])
	// Every entry needs at least 12 bytes of length prefixes.
	if uint64(count)*12 > uint64(len(body)-headerSize) {
		return partition{}, fmt.Errorf("%w: entry count %d exceeds payload", ErrCorrupt, count)
	}
	p.entries = make(map[string][]byte, count)

	off := headerSize
	for i := uint32(0); i < count; i++ {
		if len(body)-off < 4 {
			return partition{}, fmt.Errorf("%w: truncated key length at entry %d", ErrCorrupt, i)
		}
		kl := uint64(binary.LittleEndian.Uint32(body[off:]))
		off += 4
		if kl > uint64(len(body)-off) {
			return partition{}, fmt.Errorf("%w: truncated key at entry %d", ErrCorrupt, i)
		}
		keyEnd := off + int(kl)
		key := string(body[off:keyEnd])
		off = keyEnd
		if len(body)-off < 8 {
			return partition{}, fmt.Errorf("%w: truncated value length at entry %d", ErrCorrupt, i)
		}
		vl := binary.LittleEndian.Uint64(body[off:])
		off += 8
		if vl > uint64(len(body)-off) {
			return partition{}, fmt.Errorf("%w: truncated value at entry %d", ErrCorrupt, i)
		}
		end := off + int(vl)
		p.entries[key] = body[off:end:end]
		off = end
	}
	if off != len(body) {
		return partition{}, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(body)-off)
	}
	return p, nil
}
