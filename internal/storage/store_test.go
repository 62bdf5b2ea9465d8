package storage

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"voxelglobe/internal/world"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chunks", "world.db"), quietLog())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleChunk(coord world.ChunkCoord) *world.Chunk {
	c := world.NewChunk(coord)
	for x := range world.ChunkSize {
		for z := range world.ChunkSize {
			c.SetVoxel(x, 0, z, world.NewVoxel(world.VoxelStone))
		}
	}
	c.SetVoxel(3, 1, 4, world.NewVoxel(world.VoxelGrass))
	c.SetVoxel(15, 15, 15, world.Voxel{Type: world.VoxelWood, Texture: "oak_bark"})
	return c
}

func sameContent(t *testing.T, a, b *world.Chunk) {
	t.Helper()
	da, db := a.Dense(), b.Dense()
	for i := range da {
		if da[i] != db[i] {
			t.Fatalf("cell %d differs: %+v vs %+v", i, da[i], db[i])
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		chunk *world.Chunk
	}{
		{"empty", world.NewChunk(world.ChunkCoord{})},
		{"mixed", sampleChunk(world.ChunkCoord{X: -3, Y: 1, Z: 7})},
		{"generated", world.NewFlatGenerator(9, world.FlatSettings{DepthChunks: 1, Decorations: true}).GenerateChunk(world.ChunkCoord{Y: 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			back, err := DecodeChunk(tt.chunk.Coord(), EncodeChunk(tt.chunk))
			if err != nil {
				t.Fatal(err)
			}
			if back.IsModified() {
				t.Error("decoded chunk marked modified")
			}
			sameContent(t, tt.chunk, back)
		})
	}
}

func TestCodecCompressesUniformChunks(t *testing.T) {
	c := world.NewChunk(world.ChunkCoord{})
	c.Fill(world.NewVoxel(world.VoxelStone))
	if n := len(EncodeChunk(c)); n > 128 {
		t.Errorf("uniform chunk encoded to %d bytes", n)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	good := EncodeChunk(sampleChunk(world.ChunkCoord{}))
	tests := []struct {
		name string
		data []byte
	}{
		{"not zstd", []byte("hello")},
		{"empty", nil},
		{"bad version", encoder.EncodeAll([]byte{9, 0}, nil)},
		{"truncated runs", encoder.EncodeAll([]byte{FormatVersion, 0}, nil)},
		{"palette overflow", encoder.EncodeAll([]byte{FormatVersion, 1, byte(world.VoxelStone), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2}, nil)},
	}
	for _, tt := range tests {
		if _, err := DecodeChunk(world.ChunkCoord{}, tt.data); err == nil {
			t.Errorf("%s: decoded without error", tt.name)
		}
	}
	if _, err := DecodeChunk(world.ChunkCoord{}, good); err != nil {
		t.Errorf("good data rejected: %v", err)
	}
}

func TestStoreSaveLoad(t *testing.T) {
	s := openTemp(t)
	table := s.StorageFor(world.WorldHills, 42)

	coord := world.ChunkCoord{X: 1, Y: -2, Z: 3}
	if _, err := table.LoadChunk(coord); !errors.Is(err, world.ErrChunkNotFound) {
		t.Fatalf("miss returned %v", err)
	}
	c := sampleChunk(coord)
	if err := table.SaveChunk(c); err != nil {
		t.Fatal(err)
	}
	back, err := table.LoadChunk(coord)
	if err != nil {
		t.Fatal(err)
	}
	if back.Coord() != coord {
		t.Errorf("coord = %v", back.Coord())
	}
	sameContent(t, c, back)

	c.SetVoxel(3, 1, 4, world.Air)
	if err := table.SaveChunk(c); err != nil {
		t.Fatal(err)
	}
	back, _ = table.LoadChunk(coord)
	if !back.Voxel(3, 1, 4).IsAir() {
		t.Error("overwrite not persisted")
	}
	if n, _ := s.Count(Namespace(world.WorldHills, 42)); n != 1 {
		t.Errorf("count = %d", n)
	}
}

func TestStoreNamespaces(t *testing.T) {
	s := openTemp(t)
	coord := world.ChunkCoord{}
	if err := s.StorageFor(world.WorldFlat, 1).SaveChunk(sampleChunk(coord)); err != nil {
		t.Fatal(err)
	}
	for _, other := range []world.ChunkStorage{s.StorageFor(world.WorldFlat, 2), s.StorageFor(world.WorldImproved, 1)} {
		if _, err := other.LoadChunk(coord); !errors.Is(err, world.ErrChunkNotFound) {
			t.Errorf("%s sees another world's chunk: %v", other.(*ChunkTable).Namespace(), err)
		}
	}
	if err := s.Delete(Namespace(world.WorldFlat, 1)); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(Namespace(world.WorldFlat, 1)); n != 0 {
		t.Errorf("count after delete = %d", n)
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.db")
	s, err := Open(path, quietLog())
	if err != nil {
		t.Fatal(err)
	}
	c := sampleChunk(world.ChunkCoord{X: 5})
	if err := s.StorageFor(world.WorldSpherical, 7).SaveChunk(c); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path, quietLog())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	back, err := s.StorageFor(world.WorldSpherical, 7).LoadChunk(c.Coord())
	if err != nil {
		t.Fatal(err)
	}
	sameContent(t, c, back)
}

func TestStoreBacksChunkManager(t *testing.T) {
	s := openTemp(t)
	cfg := world.DefaultWorldConfig()
	cfg.Type = world.WorldFlat
	cfg.Generator.Flat.Decorations = false
	w, err := world.NewVoxelWorld(cfg, s, quietLog())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	m := w.Manager()
	m.ForceLoadChunk(world.ChunkCoord{})
	w.SetVoxel(2, 15, 2, world.NewVoxel(world.VoxelWood))
	if !m.ForceUnloadChunk(world.ChunkCoord{}) {
		t.Fatal("unload failed")
	}
	if got := m.GetChunk(world.ChunkCoord{}).Voxel(2, 15, 2).Type; got != world.VoxelWood {
		t.Errorf("reloaded voxel = %v", got)
	}
}
