package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/proxima/codec"
)

// Manifest describes the snapshot contents. It is encoded with the codec
// named in the header so tooling can inspect snapshots without knowing the
// payload format.
type Manifest struct {
	Kind            string    `json:"kind"`
	Count           int       `json:"count"`
	Dimension       int       `json:"dimension"`
	TargetPrecision float32   `json:"target_precision,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Snapshot is a decoded snapshot file.
type Snapshot struct {
	Header   FileHeader
	Manifest Manifest
	// Payload is the decompressed backend payload.
	Payload []byte
}

// WriteSnapshot writes a complete snapshot to w: header, manifest, the
// compressed payload and a CRC32 trailer covering everything before it.
func WriteSnapshot(w io.Writer, c codec.Codec, compression CompressionType, manifest Manifest, payload []byte) error {
	if c == nil {
		c = codec.Default
	}

	manifestBytes, err := c.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	compressed, err := Compress(payload, compression)
	if err != nil {
		return fmt.Errorf("compress payload: %w", err)
	}

	header := FileHeader{
		IndexKind:       kindByName(manifest.Kind),
		Compression:     uint8(compression),
		VectorCount:     uint64(manifest.Count),
		Dimension:       uint32(manifest.Dimension),
		TargetPrecision: manifest.TargetPrecision,
		ManifestSize:    uint32(len(manifestBytes)),
		PayloadSize:     uint64(len(compressed)),
	}
	header.SetCodecName(c.Name())

	cw := NewChecksumWriter(w)
	if err := WriteHeader(cw, &header); err != nil {
		return err
	}
	if _, err := cw.Write(manifestBytes); err != nil {
		return err
	}
	if _, err := cw.Write(compressed); err != nil {
		return err
	}

	// The trailer itself is excluded from the checksum.
	return binary.Write(w, binary.LittleEndian, cw.Sum())
}

// ReadSnapshot reads and verifies a snapshot from r.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	cr := NewChecksumReader(r)

	header, err := ReadHeader(cr)
	if err != nil {
		return nil, err
	}

	manifestBytes := make([]byte, header.ManifestSize)
	if _, err := io.ReadFull(cr, manifestBytes); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	compressed := make([]byte, header.PayloadSize)
	if _, err := io.ReadFull(cr, compressed); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	var expected uint32
	if err := binary.Read(r, binary.LittleEndian, &expected); err != nil {
		return nil, fmt.Errorf("read checksum: %w", err)
	}
	if err := cr.Verify(expected); err != nil {
		return nil, err
	}

	c, ok := codec.ByName(header.CodecNameString())
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, header.CodecNameString())
	}

	var manifest Manifest
	if err := c.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	payload, err := Decompress(compressed, CompressionType(header.Compression))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}

	return &Snapshot{
		Header:   *header,
		Manifest: manifest,
		Payload:  payload,
	}, nil
}

func kindByName(name string) uint8 {
	switch name {
	case "flat":
		return 1
	case "hnsw":
		return 2
	default:
		return 0
	}
}
