package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"coderag/pkg/types"
)

// On-disk layout, all little-endian:
//
//	magic   uint32  "CRVI"
//	version uint8
//	metric  uint8
//	dim     uint32
//	count   uint32
//	payload count*dim float32
//
// Anything that fails to decode, including a short or oversized payload,
// is reported as types.ErrIndexCorrupt so callers rebuild instead of
// serving bad neighbors.
const (
	fileMagic   uint32 = 0x43525649 // "CRVI"
	fileVersion uint8  = 1

	// fileHeaderSize is the byte length of the fixed header fields.
	fileHeaderSize int64 = 4 + 1 + 1 + 4 + 4
)

// Save writes the index to path.
func (idx *Index) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := []any{
		fileMagic,
		fileVersion,
		uint8(idx.metric),
		uint32(idx.dim),
		uint32(idx.count),
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write index header: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, idx.vectors); err != nil {
		return fmt.Errorf("write index payload: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return f.Sync()
}

// Load reads an index previously written by Save.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var (
		magic   uint32
		version uint8
		metric  uint8
		dim     uint32
		count   uint32
	)
	for _, v := range []any{&magic, &version, &metric, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: truncated header: %v", types.ErrIndexCorrupt, err)
		}
	}
	if magic != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", types.ErrIndexCorrupt, magic)
	}
	if version != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", types.ErrIndexCorrupt, version)
	}
	if !Metric(metric).valid() {
		return nil, fmt.Errorf("%w: unknown metric %d", types.ErrIndexCorrupt, metric)
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero dimension", types.ErrIndexCorrupt)
	}

	// The header fields size the allocation, so they cannot be trusted
	// until checked against the actual file: the payload must be exactly
	// count*dim float32 values. Computed in int64 to survive hostile
	// 32-bit header values.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w", err)
	}
	payload := info.Size() - fileHeaderSize
	if want := int64(count) * int64(dim) * 4; payload != want {
		return nil, fmt.Errorf("%w: payload is %d bytes, header promises %d",
			types.ErrIndexCorrupt, payload, want)
	}

	idx := &Index{
		metric:  Metric(metric),
		dim:     int(dim),
		count:   int(count),
		vectors: make([]float32, int(dim)*int(count)),
	}
	if err := binary.Read(r, binary.LittleEndian, idx.vectors); err != nil {
		return nil, fmt.Errorf("%w: truncated payload: %v", types.ErrIndexCorrupt, err)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing bytes after payload", types.ErrIndexCorrupt)
	}
	return idx, nil
}
