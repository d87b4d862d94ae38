// Package persistence implements the binary snapshot container for built
// indexes: a fixed header, a codec-encoded manifest, a compressed backend
// payload and a CRC32 trailer.
package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// MagicNumber identifies snapshot files (ASCII: "PRX0").
	MagicNumber = 0x50525830
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// HeaderSize is the encoded size of FileHeader in bytes.
	HeaderSize = 64
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidIndex   = errors.New("invalid index type")
	ErrUnknownCodec   = errors.New("unknown codec")
)

// FileHeader is the 64-byte little-endian header at the start of every
// snapshot file.
type FileHeader struct {
	Magic           uint32
	Version         uint32
	IndexKind       uint8 // 1=Flat, 2=HNSW
	Compression     uint8
	Padding1        [2]byte
	CodecName       [8]byte // NUL-padded codec name
	VectorCount     uint64
	Dimension       uint32
	TargetPrecision float32
	ManifestSize    uint32
	Padding2        [4]byte
	PayloadSize     uint64
	Reserved        [12]byte
}

// SetCodecName stores the codec name, truncated to the field size.
func (h *FileHeader) SetCodecName(name string) {
	var b [8]byte
	copy(b[:], name)
	h.CodecName = b
}

// CodecNameString returns the codec name without NUL padding.
func (h *FileHeader) CodecNameString() string {
	n := 0
	for n < len(h.CodecName) && h.CodecName[n] != 0 {
		n++
	}
	return string(h.CodecName[:n])
}

// WriteHeader writes the header to w, stamping magic and version.
func WriteHeader(w io.Writer, header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the header from r.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	return &header, nil
}
