package gpu

import "github.com/vantari/vecengine/pkg/vmath"

// Backend is the dispatch seam between GpuCollection and whatever actually
// executes the navigation kernel. softBackend (below) runs it on the host
// CPU over arena-shaped buffers, matching spec.md §4.7's memory layout
// exactly; a real build would satisfy this interface with a cgo/Vulkan or
// CUDA dispatch against the identical buffers. See DESIGN.md for why this
// module ships only the software backend.
type Backend interface {
	Navigate(params KernelParams, nodes *NodeBuffer, vectors *VectorBuffer, conns *ConnectionBuffer, entry uint32, hasEntry bool, query []float32, isLive func(uint32) bool) []candScore
}

// softBackend runs the navigation kernel as an ordinary Go function. It is
// the default and only backend this module registers.
type softBackend struct{}

// NewSoftBackend returns the pure-Go navigation backend.
func NewSoftBackend() Backend { return softBackend{} }

func (softBackend) Navigate(params KernelParams, nodes *NodeBuffer, vectors *VectorBuffer, conns *ConnectionBuffer, entry uint32, hasEntry bool, query []float32, isLive func(uint32) bool) []candScore {
	return Navigate(params, nodes, vectors, conns, entry, hasEntry, query, isLive)
}

// scoreBatch computes params.Metric similarity of query against every
// vector in refs, in the same accumulation order the kernel traversal
// uses, so a future hardware backend's batched distance stage agrees with
// this one bit-for-bit on the metric, as required by spec.md §8's
// CPU/device agreement invariant.
func scoreBatch(metric vmath.Metric, query []float32, vectors *VectorBuffer, refs []VectorRef) []float64 {
	out := make([]float64, len(refs))
	for i, ref := range refs {
		out[i] = vmath.Score(metric, query, vectors.At(ref))
	}
	return out
}
