package kvstorage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDeterministic(t *testing.T) {
	t.Parallel()
	gen := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	entries := map[string][]byte{"b": []byte("2"), "a": []byte("1"), "c": nil}
	first := encodePartition(gen, entries)
	for range 5 {
		if !bytes.Equal(first, encodePartition(gen, entries)) {
			t.Fatal("encoding is not deterministic")
		}
	}
	p, err := decodePartition(first)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.generation != gen {
		t.Fatalf("generation: got %v", p.generation)
	}
	if len(p.entries) != 3 || string(p.entries["a"]) != "1" || string(p.entries["b"]) != "2" {
		t.Fatalf("entries: %v", p.entries)
	}
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()
	data := encodePartition(uuid.New(), map[string][]byte{"key": []byte("value")})
	for _, n := range []int{0, headerSize, len(data) - 1} {
		if _, err := decodePartition(data[:n]); !errors.Is(err, ErrCorrupt) {
			t.Errorf("decode of %d/%d bytes: err = %v", n, len(data), err)
		}
	}
}

func TestDecodeOversizedKeyLength(t *testing.T) {
	t.Parallel()
	data := encodePartition(uuid.New(), map[string][]byte{"key": []byte("value")})
	body := data[:len(data)-trailerSize]
	binary.LittleEndian.PutUint32(body[headerSize:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(data[len(data)-trailerSize:], crc32.ChecksumIEEE(body))

	if _, err := decodePartition(data); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}
