package world

import "errors"

// ErrChunkNotFound is returned by ChunkStorage.LoadChunk when nothing was persisted for a coordinate.
var ErrChunkNotFound = errors.New("chunk not found")

// ChunkStorage persists chunks. LoadChunk returns ErrChunkNotFound on a miss; any other error
// is a storage failure and the caller falls back to generation.
type ChunkStorage interface {
	LoadChunk(coord ChunkCoord) (*Chunk, error)
	SaveChunk(c *Chunk) error
}

// StorageProvider hands out a storage namespace per (world type, seed), so switching worlds
// never mixes chunks of different terrain.
type StorageProvider interface {
	StorageFor(t WorldType, seed int64) ChunkStorage
}

// NopStorage never finds a chunk and accepts every save.
type NopStorage struct{}

func (NopStorage) LoadChunk(ChunkCoord) (*Chunk, error) { return nil, ErrChunkNotFound }
func (NopStorage) SaveChunk(*Chunk) error               { return nil }

// NopProvider returns NopStorage for every world.
type NopProvider struct{}

func (NopProvider) StorageFor(WorldType, int64) ChunkStorage { return NopStorage{} }
