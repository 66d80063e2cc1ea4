// Package history keeps a bounded log of past readings and persists it to disk.
package history

import "github.com/sweeney/heat-controller/internal/logic"

// DefaultCapacity is the number of readings kept.
const DefaultCapacity = 100

// Ring is a fixed-capacity FIFO of readings, most recent last.
// Not safe for concurrent use; the control loop owns it.
type Ring struct {
	buf      []logic.Reading
	capacity int
	head     int // next write position
	count    int
}

// NewRing creates an empty ring. Capacity below 1 is raised to 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		buf:      make([]logic.Reading, capacity),
		capacity: capacity,
	}
}

// Push appends a reading, evicting the oldest one when full.
func (r *Ring) Push(reading logic.Reading) {
	r.buf[r.head] = reading
	r.head = (r.head + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}
}

// Readings returns a copy of the stored readings, oldest first.
func (r *Ring) Readings() []logic.Reading {
	result := make([]logic.Reading, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}
	return result
}

// Latest returns the most recent reading.
func (r *Ring) Latest() (logic.Reading, bool) {
	if r.count == 0 {
		return logic.Reading{}, false
	}
	return r.buf[(r.head-1+r.capacity)%r.capacity], true
}

// Len returns the number of stored readings.
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the ring's capacity.
func (r *Ring) Cap() int {
	return r.capacity
}
