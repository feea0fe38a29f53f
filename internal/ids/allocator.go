package ids

import "github.com/roach88/synthctl/internal/fault"

// Allocator hands out ids from a fixed window.
//
// INVARIANTS:
//   - bits[i] is true iff offset+i is currently allocated
//   - cursor is always in [0, len(bits))
//   - capacity never changes after construction
type Allocator struct {
	offset int32
	bits   []bool
	cursor int
	live   int
}

// NewAllocator creates an allocator for ids offset..offset+capacity-1.
// Panics if capacity is not positive or the window overflows int32.
func NewAllocator(offset int32, capacity int) *Allocator {
	if capacity <= 0 {
		panic("ids: capacity must be positive")
	}
	if int64(offset)+int64(capacity)-1 > int64(^uint32(0)>>1) {
		panic("ids: id window overflows int32")
	}
	return &Allocator{
		offset: offset,
		bits:   make([]bool, capacity),
	}
}

// Alloc returns the first free id at or after the cursor, wrapping around
// once. Fails with fault.ErrResourceExhausted when every id is live.
func (a *Allocator) Alloc() (int32, error) {
	n := len(a.bits)
	for step := 0; step < n; step++ {
		i := (a.cursor + step) % n
		if a.bits[i] {
			continue
		}
		a.bits[i] = true
		a.live++
		a.cursor = (i + 1) % n
		return a.offset + int32(i), nil
	}
	return 0, fault.Newf(fault.CodeResourceExhausted, "ids.alloc", "all %d ids in use", n)
}

// Free releases id. Fails with fault.ErrInvalidIdentifier if id lies outside
// the window or is not currently allocated.
func (a *Allocator) Free(id int32) error {
	i := int64(id) - int64(a.offset)
	if i < 0 || i >= int64(len(a.bits)) {
		return fault.Newf(fault.CodeInvalidIdentifier, "ids.free",
			"id %d outside [%d, %d)", id, a.offset, int64(a.offset)+int64(len(a.bits)))
	}
	if !a.bits[i] {
		return fault.Newf(fault.CodeInvalidIdentifier, "ids.free", "id %d is not allocated", id)
	}
	a.bits[i] = false
	a.live--
	return nil
}

// Reserve marks id allocated without moving the cursor. It restores an id
// that was released optimistically. Fails with fault.ErrInvalidIdentifier if
// id lies outside the window or is already allocated.
func (a *Allocator) Reserve(id int32) error {
	i := int64(id) - int64(a.offset)
	if i < 0 || i >= int64(len(a.bits)) {
		return fault.Newf(fault.CodeInvalidIdentifier, "ids.reserve",
			"id %d outside [%d, %d)", id, a.offset, int64(a.offset)+int64(len(a.bits)))
	}
	if a.bits[i] {
		return fault.Newf(fault.CodeInvalidIdentifier, "ids.reserve", "id %d is already allocated", id)
	}
	a.bits[i] = true
	a.live++
	return nil
}

// Contains reports whether id is currently allocated.
func (a *Allocator) Contains(id int32) bool {
	i := int64(id) - int64(a.offset)
	return i >= 0 && i < int64(len(a.bits)) && a.bits[i]
}

// Live returns the number of allocated ids.
func (a *Allocator) Live() int { return a.live }

// Capacity returns the size of the id window.
func (a *Allocator) Capacity() int { return len(a.bits) }

// Offset returns the lowest id in the window.
func (a *Allocator) Offset() int32 { return a.offset }
