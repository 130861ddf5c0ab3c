package gpu

import "github.com/vantari/vecengine/pkg/vecerr"

// defaultMaxBindingBytes matches common desktop GPUs' max-storage-buffer-
// binding size (256 MiB), used when a DeviceContext is created without an
// explicit override.
const defaultMaxBindingBytes = 256 << 20

// DeviceContext bounds how much VRAM-equivalent memory a GpuCollection may
// allocate (spec.md §4.7's vram_limit_bytes) and derives per-buffer
// capacity from it.
type DeviceContext struct {
	dimension       int
	vramLimitBytes  int64
	maxBindingBytes int
	used            int64
}

// NewDeviceContext creates a device context for vectors of the given
// dimension, capped at vramLimitBytes total resident bytes.
func NewDeviceContext(dimension int, vramLimitBytes int64) *DeviceContext {
	if vramLimitBytes <= 0 {
		vramLimitBytes = 1 << 30 // 1 GiB default ceiling
	}
	return &DeviceContext{
		dimension:       dimension,
		vramLimitBytes:  vramLimitBytes,
		maxBindingBytes: defaultMaxBindingBytes,
	}
}

// Reserve accounts for an additional allocation of n bytes, failing with
// VramLimitExceeded (spec.md §7) if it would exceed the configured ceiling.
func (d *DeviceContext) Reserve(n int64) *vecerr.Error {
	if d.used+n > d.vramLimitBytes {
		return vecerr.Newf(vecerr.VramLimitExceeded, "reserving %d bytes would exceed vram limit %d (used %d)", n, d.vramLimitBytes, d.used)
	}
	d.used += n
	return nil
}

// Release gives back n bytes of prior reservation. Collection.Delete does
// not call it, so a tombstoned vector keeps its reservation.
func (d *DeviceContext) Release(n int64) {
	d.used -= n
	if d.used < 0 {
		d.used = 0
	}
}

// UsedBytes reports current resident usage.
func (d *DeviceContext) UsedBytes() int64 { return d.used }

// VectorBytes returns the resident byte cost of one vector at this
// context's dimension.
func (d *DeviceContext) VectorBytes() int64 {
	return int64(d.dimension) * 4
}

// NodeBytes returns the resident byte cost of one NodeRecord.
func (d *DeviceContext) NodeBytes() int64 {
	return int64(4 + 4 + 4*MaxConnectionsPerNode + 4 + 8)
}
