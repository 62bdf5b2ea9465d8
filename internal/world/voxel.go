package world

import (
	"github.com/go-gl/mathgl/mgl32"
)

type VoxelType uint8

const (
	VoxelAir VoxelType = iota
	VoxelSolid
	VoxelCobblestone
	VoxelGrass
	VoxelDirt
	VoxelStone
	VoxelSand
	VoxelWater
	VoxelSnow
	VoxelRock
	VoxelWood
	VoxelLeaves
	VoxelCore
	VoxelBedrock

	numVoxelTypes
)

var voxelTypeNames = [numVoxelTypes]string{
	"air", "solid", "cobblestone", "grass", "dirt", "stone", "sand",
	"water", "snow", "rock", "wood", "leaves", "core", "bedrock",
}

func (t VoxelType) String() string {
	if t < numVoxelTypes {
		return voxelTypeNames[t]
	}
	return "unknown"
}

// Voxel is a single cell of the world. The zero value is Air.
type Voxel struct {
	Type    VoxelType
	Color   mgl32.Vec3
	Texture string // optional texture reference
}

// Air is the empty voxel. It is never stored explicitly.
var Air = Voxel{}

// NewVoxel returns a voxel of the given type with its default color.
func NewVoxel(t VoxelType) Voxel {
	if t == VoxelAir {
		return Air
	}
	return Voxel{Type: t, Color: DefaultColor(t)}
}

func (v Voxel) IsAir() bool {
	return v.Type == VoxelAir
}

// IsSolid reports whether the voxel blocks movement. Water is not solid.
func (v Voxel) IsSolid() bool {
	return v.Type != VoxelAir && v.Type != VoxelWater
}

// DefaultColor returns the base color for a voxel type
func DefaultColor(t VoxelType) mgl32.Vec3 {
	switch t {
	case VoxelGrass:
		return mgl32.Vec3{0.36, 0.62, 0.25}
	case VoxelDirt:
		return mgl32.Vec3{0.47, 0.33, 0.2}
	case VoxelStone, VoxelCobblestone:
		return mgl32.Vec3{0.5, 0.5, 0.5}
	case VoxelRock:
		return mgl32.Vec3{0.42, 0.4, 0.38}
	case VoxelSand:
		return mgl32.Vec3{0.86, 0.8, 0.55}
	case VoxelWater:
		return mgl32.Vec3{0.2, 0.35, 0.8}
	case VoxelSnow:
		return mgl32.Vec3{0.95, 0.95, 0.98}
	case VoxelWood:
		return mgl32.Vec3{0.4, 0.27, 0.13}
	case VoxelLeaves:
		return mgl32.Vec3{0.2, 0.5, 0.15}
	case VoxelCore:
		return mgl32.Vec3{0.8, 0.3, 0.1}
	case VoxelBedrock:
		return mgl32.Vec3{0.15, 0.15, 0.15}
	default:
		return mgl32.Vec3{0.6, 0.6, 0.6} // Gray (fallback)
	}
}
