package world

import "unsafe"

// octreeNode is either uniform (children == nil, every voxel in its extent equals value)
// or split into eight octants.
type octreeNode struct {
	children *[8]*octreeNode
	value    Voxel
}

// Octree is a sparse 16³ voxel store. Unset space is Air and costs nothing.
type Octree struct {
	root  octreeNode
	nodes int // allocated nodes below the root
	count int // non-air voxels
}

// Approximate heap cost of one allocated node, including its slot in the parent array.
var octreeNodeBytes = int(unsafe.Sizeof(octreeNode{})) + int(unsafe.Sizeof(uintptr(0)))

func NewOctree() *Octree {
	return &Octree{}
}

func octant(x, y, z, half int) int {
	i := 0
	if x >= half {
		i |= 1
	}
	if y >= half {
		i |= 2
	}
	if z >= half {
		i |= 4
	}
	return i
}

func inOctree(x, y, z int) bool {
	return x >= 0 && x < ChunkSize && y >= 0 && y < ChunkSize && z >= 0 && z < ChunkSize
}

// Get returns the voxel at local coordinates; out-of-range reads return Air.
func (t *Octree) Get(x, y, z int) Voxel {
	if !inOctree(x, y, z) {
		return Air
	}
	n := &t.root
	size := ChunkSize
	for n.children != nil {
		half := size / 2
		n = n.children[octant(x, y, z, half)]
		x, y, z = x&(half-1), y&(half-1), z&(half-1)
		size = half
	}
	return n.value
}

// Set stores v at local coordinates and reports whether the stored value changed.
// Setting Air where Air already is never allocates.
func (t *Octree) Set(x, y, z int, v Voxel) bool {
	if !inOctree(x, y, z) {
		return false
	}
	if v.IsAir() {
		v = Air
	}
	old := t.Get(x, y, z)
	if old == v {
		return false
	}
	t.set(&t.root, x, y, z, ChunkSize, v)
	switch {
	case old.IsAir() && !v.IsAir():
		t.count++
	case !old.IsAir() && v.IsAir():
		t.count--
	}
	return true
}

func (t *Octree) set(n *octreeNode, x, y, z, size int, v Voxel) {
	if size == 1 {
		n.value = v
		return
	}
	if n.children == nil {
		n.children = new([8]*octreeNode)
		for i := range n.children {
			n.children[i] = &octreeNode{value: n.value}
		}
		t.nodes += 8
	}
	half := size / 2
	t.set(n.children[octant(x, y, z, half)], x&(half-1), y&(half-1), z&(half-1), half, v)

	// Give memory back as soon as a subtree is empty again.
	if v.IsAir() && n.uniformChildren() && n.children[0].value.IsAir() {
		n.children = nil
		n.value = Air
		t.nodes -= 8
	}
}

// uniformChildren reports whether all eight children are leaves holding the same value.
func (n *octreeNode) uniformChildren() bool {
	first := n.children[0]
	if first.children != nil {
		return false
	}
	for _, c := range n.children[1:] {
		if c.children != nil || c.value != first.value {
			return false
		}
	}
	return true
}

// Fill makes the whole tree a single uniform region.
func (t *Octree) Fill(v Voxel) {
	if v.IsAir() {
		v = Air
	}
	t.root = octreeNode{value: v}
	t.nodes = 0
	t.count = 0
	if !v.IsAir() {
		t.count = ChunkVolume
	}
}

// Optimize merges every split node whose octants are uniform and equal.
// It returns the number of merged nodes.
func (t *Octree) Optimize() int {
	return t.optimize(&t.root)
}

func (t *Octree) optimize(n *octreeNode) int {
	if n.children == nil {
		return 0
	}
	merged := 0
	for _, c := range n.children {
		merged += t.optimize(c)
	}
	if n.uniformChildren() {
		n.value = n.children[0].value
		n.children = nil
		t.nodes -= 8
		merged++
	}
	return merged
}

// ForEach calls fn for every non-air voxel.
func (t *Octree) ForEach(fn func(x, y, z int, v Voxel)) {
	t.forEach(&t.root, 0, 0, 0, ChunkSize, fn)
}

func (t *Octree) forEach(n *octreeNode, ox, oy, oz, size int, fn func(x, y, z int, v Voxel)) {
	if n.children == nil {
		if n.value.IsAir() {
			return
		}
		for x := ox; x < ox+size; x++ {
			for y := oy; y < oy+size; y++ {
				for z := oz; z < oz+size; z++ {
					fn(x, y, z, n.value)
				}
			}
		}
		return
	}
	half := size / 2
	for i, c := range n.children {
		cx, cy, cz := ox, oy, oz
		if i&1 != 0 {
			cx += half
		}
		if i&2 != 0 {
			cy += half
		}
		if i&4 != 0 {
			cz += half
		}
		t.forEach(c, cx, cy, cz, half, fn)
	}
}

// Count returns the number of non-air voxels.
func (t *Octree) Count() int { return t.count }

// NodeCount returns the number of allocated nodes below the root.
func (t *Octree) NodeCount() int { return t.nodes }

// IsEmpty reports whether the tree holds only Air.
func (t *Octree) IsEmpty() bool { return t.count == 0 }

// MemoryUsage estimates the heap footprint in bytes.
func (t *Octree) MemoryUsage() int64 {
	return int64(unsafe.Sizeof(*t)) + int64(t.nodes*octreeNodeBytes)
}
