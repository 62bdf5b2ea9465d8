package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"voxelglobe/internal/world"
)

// FormatVersion is the first byte of every encoded chunk.
//
// Layout after decompression:
//
//	version   byte
//	palette   uvarint n, then n entries of: type byte, color 3x float32 LE, texture uvarint len + bytes
//	runs      (uvarint palette index, uvarint length) pairs covering world.ChunkVolume cells
//
// Cells are ordered by world.DenseIndex.
const FormatVersion = 1

var errCorrupt = errors.New("corrupt chunk data")

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// EncodeChunk serialises and compresses every cell of c.
func EncodeChunk(c *world.Chunk) []byte {
	cells := c.Dense()

	index := make(map[world.Voxel]uint64)
	var palette []world.Voxel
	idx := make([]uint64, len(cells))
	for i, v := range cells {
		p, ok := index[v]
		if !ok {
			p = uint64(len(palette))
			index[v] = p
			palette = append(palette, v)
		}
		idx[i] = p
	}

	buf := []byte{FormatVersion}
	buf = binary.AppendUvarint(buf, uint64(len(palette)))
	for _, v := range palette {
		buf = append(buf, byte(v.Type))
		for _, f := range v.Color {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
		buf = binary.AppendUvarint(buf, uint64(len(v.Texture)))
		buf = append(buf, v.Texture...)
	}
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && idx[j] == idx[i] {
			j++
		}
		buf = binary.AppendUvarint(buf, idx[i])
		buf = binary.AppendUvarint(buf, uint64(j-i))
		i = j
	}
	return encoder.EncodeAll(buf, nil)
}

// DecodeChunk reverses EncodeChunk. The returned chunk is unmodified.
func DecodeChunk(coord world.ChunkCoord, data []byte) (*world.Chunk, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk %v: %w", coord, err)
	}
	r := reader{buf: raw}
	if v := r.byte(); v != FormatVersion {
		return nil, fmt.Errorf("chunk %v: unsupported format version %d", coord, v)
	}

	n := r.uvarint()
	if n > world.ChunkVolume {
		return nil, fmt.Errorf("chunk %v: palette of %d entries: %w", coord, n, errCorrupt)
	}
	palette := make([]world.Voxel, n)
	for i := range palette {
		v := world.Voxel{Type: world.VoxelType(r.byte())}
		for k := range v.Color {
			v.Color[k] = math.Float32frombits(r.uint32())
		}
		v.Texture = string(r.bytes(r.uvarint()))
		palette[i] = v
	}

	cells := make([]world.Voxel, 0, world.ChunkVolume)
	for len(cells) < world.ChunkVolume && r.err == nil {
		p, run := r.uvarint(), r.uvarint()
		if p >= uint64(len(palette)) || run == 0 || uint64(len(cells))+run > world.ChunkVolume {
			return nil, fmt.Errorf("chunk %v: bad run (%d x%d): %w", coord, p, run, errCorrupt)
		}
		for range run {
			cells = append(cells, palette[p])
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("chunk %v: %w", coord, r.err)
	}
	return world.NewChunkFromDense(coord, cells)
}

// reader records the first short read and returns zero values afterwards.
type reader struct {
	buf []byte
	err error
}

func (r *reader) need(n uint64) bool {
	if r.err != nil {
		return false
	}
	if uint64(len(r.buf)) < n {
		r.err = errCorrupt
		return false
	}
	return true
}

func (r *reader) byte() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b
}

func (r *reader) uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		r.err = errCorrupt
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *reader) bytes(n uint64) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}
