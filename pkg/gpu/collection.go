package gpu

import (
	"context"
	"sync"

	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

// gpuNode is the host-side bookkeeping twin of a device NodeRecord: it
// carries the payload and tombstone flag the arena buffers don't, and maps
// string ids to arena ids.
type gpuNode struct {
	payload    vecmodel.Payload
	tombstoned bool
}

// Collection is the GPU-backed collection variant of spec.md §4.7: vectors,
// node records and adjacency all live in VRAM-shaped arena buffers behind a
// single global mutation lock, and search dispatches into Backend.Navigate
// with no per-step host/device transfer.
type Collection struct {
	dimension int
	config    vecmodel.CollectionConfig
	device    *DeviceContext
	backend   Backend

	mu         sync.RWMutex
	vectors    *VectorBuffer
	nodes      *NodeBuffer
	conns      *ConnectionBuffer
	byID       map[string]uint32
	idOf       map[uint32]string
	meta       map[uint32]*gpuNode
	entryPoint uint32
	hasEntry   bool
}

// New creates a GPU-backed collection bounded by vramLimitBytes.
func New(config vecmodel.CollectionConfig, vramLimitBytes int64) (*Collection, *vecerr.Error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	device := NewDeviceContext(config.Dimension, vramLimitBytes)
	return &Collection{
		dimension: config.Dimension,
		config:    config,
		device:    device,
		backend:   NewSoftBackend(),
		vectors:   NewVectorBuffer(config.Dimension, device.maxBindingBytes),
		nodes:     NewNodeBuffer(),
		conns:     NewConnectionBuffer(),
		byID:      make(map[string]uint32),
		idOf:      make(map[uint32]string),
		meta:      make(map[uint32]*gpuNode),
	}, nil
}

// Insert uploads a vector and its node record to the device buffers
// (spec.md §4.7: batched device writes under a global mutation lock).
func (c *Collection) Insert(v vecmodel.Vector) *vecerr.Error {
	if err := v.Validate(c.dimension); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.device.Reserve(c.device.VectorBytes() + c.device.NodeBytes()); err != nil {
		return err
	}

	ref, err := c.vectors.Append(v.Data)
	if err != nil {
		return err
	}
	arenaID := c.nodes.Append(NodeRecord{VectorRef: ref})
	c.byID[v.ID] = arenaID
	c.idOf[arenaID] = v.ID
	c.meta[arenaID] = &gpuNode{payload: v.Payload}

	if !c.hasEntry {
		c.entryPoint = arenaID
		c.hasEntry = true
	}
	c.linkNeighbors(arenaID)
	return nil
}

// linkNeighbors wires a small-world fallback connectivity for the new node
// against up to HNSW.M existing live nodes (capped at MaxConnectionsPerNode,
// which is also the limit when M is unset), scored by the
// collection's metric — a simplification of full HNSW layering suited to
// the flat, single-layer arena this device buffer set stores.
func (c *Collection) linkNeighbors(newID uint32) {
	query := c.vectors.At(c.nodes.Get(newID).VectorRef)
	type cand struct {
		id    uint32
		score float64
	}
	var cands []cand
	for id := uint32(0); id < uint32(c.nodes.Len()); id++ {
		if id == newID || (c.meta[id] != nil && c.meta[id].tombstoned) {
			continue
		}
		s := scoreBatch(c.config.Metric, query, c.vectors, []VectorRef{c.nodes.Get(id).VectorRef})[0]
		cands = append(cands, cand{id: id, score: s})
	}
	limit := c.config.HNSW.M
	if limit <= 0 || limit > MaxConnectionsPerNode {
		limit = MaxConnectionsPerNode
	}
	// partial selection sort for the top `limit` candidates, plenty for
	// the arena sizes this variant targets.
	for i := 0; i < len(cands) && i < limit; i++ {
		best := i
		for j := i + 1; j < len(cands); j++ {
			if cands[j].score > cands[best].score {
				best = j
			}
		}
		cands[i], cands[best] = cands[best], cands[i]
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}

	rec := c.nodes.Get(newID)
	for _, nb := range cands {
		rec.Connections[rec.ConnectionCount] = nb.id
		rec.ConnectionCount++
		if rec.ConnectionCount >= MaxConnectionsPerNode {
			break
		}
	}
	c.nodes.Set(newID, rec)

	for _, nb := range cands {
		nbRec := c.nodes.Get(nb.id)
		if nbRec.ConnectionCount < MaxConnectionsPerNode {
			nbRec.Connections[nbRec.ConnectionCount] = newID
			nbRec.ConnectionCount++
			c.nodes.Set(nb.id, nbRec)
		} else {
			overflow := append(c.conns.Overflow(nb.id), newID)
			c.conns.SetOverflow(nb.id, overflow)
		}
	}
}

// Delete tombstones id without rewiring neighbors (spec.md §4.2). Unlike
// the host HNSW index, it keeps the node's edges and arena slot in place;
// Search traverses through the tombstoned node but never returns it.
func (c *Collection) Delete(id string) *vecerr.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	arenaID, ok := c.byID[id]
	if !ok {
		return vecerr.New(vecerr.VectorNotFound, "vector not found").WithID(id)
	}
	c.meta[arenaID].tombstoned = true
	delete(c.byID, id)
	return nil
}

// Search dispatches the navigation kernel and reads back only the final
// top-k (spec.md §4.7).
func (c *Collection) Search(ctx context.Context, query []float32, k int) ([]vecmodel.SearchResult, *vecerr.Error) {
	if len(query) != c.dimension {
		return nil, vecerr.Newf(vecerr.DimensionMismatch, "expected dimension %d, got %d", c.dimension, len(query))
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	params := KernelParams{
		Dimension:      c.dimension,
		K:              k,
		EfSearch:       c.config.HNSW.EfSearch,
		MaxConnections: MaxConnectionsPerNode,
		NodeCount:      c.nodes.Len(),
		Metric:         c.config.Metric,
	}
	isLive := func(id uint32) bool {
		m := c.meta[id]
		return m != nil && !m.tombstoned
	}
	raw := c.backend.Navigate(params, c.nodes, c.vectors, c.conns, c.entryPoint, c.hasEntry, query, isLive)

	out := make([]vecmodel.SearchResult, 0, len(raw))
	for _, r := range raw {
		id, ok := c.idOf[r.id]
		if !ok {
			continue
		}
		m := c.meta[r.id]
		if m == nil || m.tombstoned {
			continue
		}
		out = append(out, vecmodel.SearchResult{ID: id, Score: r.score, Payload: m.payload})
	}
	return out, nil
}

// Len returns the number of live (non-tombstoned) vectors.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// UsedBytes reports current device memory usage.
func (c *Collection) UsedBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device.UsedBytes()
}
