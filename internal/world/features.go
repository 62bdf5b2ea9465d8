package world

// Feature extents, used by generators to decide whether a chunk can be touched by a feature
// rooted in a column below or above it.
const (
	maxTreeHeight   = 6
	treeCanopyDepth = 2
	maxFeatureRise  = maxTreeHeight + treeCanopyDepth
	featureMargin   = 2
)

// placeTree writes a trunk of the given height rooted at world (x, baseY, z) with a
// leaf canopy around its top. Only the voxels that fall inside c are written.
func placeTree(c *Chunk, x, baseY, z, height int) {
	wood := NewVoxel(VoxelWood)
	leaves := NewVoxel(VoxelLeaves)

	top := baseY + height - 1
	for dy := -1; dy <= treeCanopyDepth-1; dy++ {
		r := 2
		if dy == treeCanopyDepth-1 {
			r = 1
		}
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if r == 2 && absInt(dx) == 2 && absInt(dz) == 2 {
					continue // round off the corners
				}
				putWorldIfAir(c, x+dx, top+dy, z+dz, leaves)
			}
		}
	}
	putWorldIfAir(c, x, top+treeCanopyDepth, z, leaves)

	for y := baseY; y <= top; y++ {
		putWorld(c, x, y, z, wood)
	}
}

// placeRock writes a small boulder resting on world (x, baseY, z). size is 1 or 2.
func placeRock(c *Chunk, x, baseY, z, size int, t VoxelType) {
	v := NewVoxel(t)
	for dx := 0; dx < size; dx++ {
		for dz := 0; dz < size; dz++ {
			putWorld(c, x+dx, baseY, z+dz, v)
		}
	}
	if size > 1 {
		putWorld(c, x, baseY+1, z, v)
	}
}

// featureSpan reports whether a feature rooted at baseY can reach the chunk's Y range.
func featureSpan(coord ChunkCoord, baseY int) bool {
	lo, hi := columnRange(coord)
	return baseY <= hi && baseY+maxFeatureRise >= lo
}
