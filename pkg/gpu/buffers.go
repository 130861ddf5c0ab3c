// Package gpu implements the device-resident collection variant of
// spec.md §4.7: VRAM-shaped vector/node/connection buffers plus a compute
// kernel that navigates the HNSW graph without host transfers during
// search.
//
// This package models VRAM as ordinary Go memory arranged in the exact
// layouts spec.md names (interleaved vector pages, struct-of-arrays node
// records, a flat connection arena), behind a Backend seam
// (see backend.go) where a real cgo/Vulkan/CUDA dispatch would plug in —
// see DESIGN.md for why no compiled GPU backend ships in this module.
package gpu

import "github.com/vantari/vecengine/pkg/vecerr"

// MaxConnectionsPerNode bounds the fixed-size connection slice embedded in
// each NodeRecord (spec.md §4.7: "connections:[u32; M_MAX]").
const MaxConnectionsPerNode = 64

// VectorPage is one bindable sub-buffer of interleaved [f32; d] vectors.
// Vectors are paginated across multiple VectorPages when a single page
// would exceed maxBindingBytes (spec.md §4.7's pagination requirement).
type VectorPage struct {
	data   []float32
	dim    int
	cap    int // slots
	filled int
}

func newVectorPage(dim, slots int) *VectorPage {
	return &VectorPage{data: make([]float32, dim*slots), dim: dim, cap: slots}
}

func (p *VectorPage) full() bool { return p.filled >= p.cap }

func (p *VectorPage) append(vec []float32) (offsetInPage int) {
	offset := p.filled
	copy(p.data[offset*p.dim:(offset+1)*p.dim], vec)
	p.filled++
	return offset
}

func (p *VectorPage) at(slot int) []float32 {
	return p.data[slot*p.dim : (slot+1)*p.dim]
}

// VectorBuffer is the paginated interleaved vector store (spec.md §4.7).
type VectorBuffer struct {
	dim             int
	maxBindingBytes int
	slotsPerPage    int
	pages           []*VectorPage
}

// NewVectorBuffer creates a vector buffer for the given dimension, sizing
// each page so it never exceeds maxBindingBytes (the device's max-buffer-
// binding size).
func NewVectorBuffer(dim, maxBindingBytes int) *VectorBuffer {
	const bytesPerFloat = 4
	slotsPerPage := maxBindingBytes / (dim * bytesPerFloat)
	if slotsPerPage < 1 {
		slotsPerPage = 1
	}
	return &VectorBuffer{dim: dim, maxBindingBytes: maxBindingBytes, slotsPerPage: slotsPerPage}
}

// VectorRef identifies a vector's position: which page, and which slot
// within it. This is the "vector_offset" a NodeRecord stores (spec.md
// §4.7), split into (page, slot) since pagination means a single u64
// offset can't address across bindable sub-buffers without knowing the
// page size.
type VectorRef struct {
	Page uint32
	Slot uint32
}

// Append stores vec, allocating a new page if every existing page is full,
// and returns its VectorRef (spec.md §4.7: "the engine resizes buffers by
// allocating a larger buffer and copying on overflow" — here realized as
// adding a new page rather than growing one unboundedly, since pages are
// already capped at the binding limit).
func (vb *VectorBuffer) Append(vec []float32) (VectorRef, *vecerr.Error) {
	if len(vec) != vb.dim {
		return VectorRef{}, vecerr.Newf(vecerr.DimensionMismatch, "expected dimension %d, got %d", vb.dim, len(vec))
	}
	if len(vb.pages) == 0 || vb.pages[len(vb.pages)-1].full() {
		vb.pages = append(vb.pages, newVectorPage(vb.dim, vb.slotsPerPage))
	}
	page := vb.pages[len(vb.pages)-1]
	slot := page.append(vec)
	return VectorRef{Page: uint32(len(vb.pages) - 1), Slot: uint32(slot)}, nil
}

// At retrieves the vector at ref.
func (vb *VectorBuffer) At(ref VectorRef) []float32 {
	return vb.pages[ref.Page].at(int(ref.Slot))
}

// PageCount reports the number of bindable sub-buffers currently in use.
func (vb *VectorBuffer) PageCount() int { return len(vb.pages) }

// NodeRecord is the struct-of-arrays node layout of spec.md §4.7.
type NodeRecord struct {
	ID              uint32
	Level           uint32
	Connections     [MaxConnectionsPerNode]uint32
	ConnectionCount uint32
	VectorRef       VectorRef
}

// NodeBuffer holds NodeRecords, indexed by arena id.
type NodeBuffer struct {
	records []NodeRecord
}

// NewNodeBuffer creates an empty node buffer.
func NewNodeBuffer() *NodeBuffer { return &NodeBuffer{} }

// Append adds a node record and returns its arena id.
func (nb *NodeBuffer) Append(rec NodeRecord) uint32 {
	rec.ID = uint32(len(nb.records))
	nb.records = append(nb.records, rec)
	return rec.ID
}

// Get returns the node record for arena id.
func (nb *NodeBuffer) Get(id uint32) NodeRecord { return nb.records[id] }

// Set replaces the node record at arena id (used when neighbor lists
// change size during insert/shrink).
func (nb *NodeBuffer) Set(id uint32, rec NodeRecord) {
	rec.ID = id
	nb.records[id] = rec
}

// Len returns the number of node records.
func (nb *NodeBuffer) Len() int { return len(nb.records) }

// ConnectionBuffer is the flat adjacency arena of spec.md §4.7. NodeRecords
// reference ranges of it in principle; in this implementation adjacency is
// held inline in NodeRecord.Connections (bounded by MaxConnectionsPerNode),
// and ConnectionBuffer additionally tracks an overflow arena for nodes
// whose neighbor count would otherwise be clamped, so the M_MAX bound is
// never silently lossy.
type ConnectionBuffer struct {
	overflow map[uint32][]uint32
}

// NewConnectionBuffer creates an empty connection arena.
func NewConnectionBuffer() *ConnectionBuffer {
	return &ConnectionBuffer{overflow: make(map[uint32][]uint32)}
}

// SetOverflow records neighbor ids beyond MaxConnectionsPerNode for a node.
func (cb *ConnectionBuffer) SetOverflow(nodeID uint32, neighbors []uint32) {
	if len(neighbors) == 0 {
		delete(cb.overflow, nodeID)
		return
	}
	cb.overflow[nodeID] = neighbors
}

// Overflow returns the overflow neighbors for a node, if any.
func (cb *ConnectionBuffer) Overflow(nodeID uint32) []uint32 {
	return cb.overflow[nodeID]
}
