package results

import (
	"strconv"
	"sync"
)

// IntIncrementer hands out consecutive integers starting at 0. It is safe
// for concurrent use.
type IntIncrementer struct {
	mu   sync.Mutex
	next int
}

// Next returns the current value and increments it.
func (i *IntIncrementer) Next() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := i.next
	i.next++
	return n
}

// IDAllocator assigns hardware and software info IDs. IDs are unique per
// allocator; all DUTs of a process share DefaultIDs unless told otherwise.
type IDAllocator struct {
	hw IntIncrementer
	sw IntIncrementer
}

// DefaultIDs is the process-wide allocator.
var DefaultIDs = NewIDAllocator()

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// NextHardwareID returns a fresh hardware info ID.
func (a *IDAllocator) NextHardwareID() string {
	return strconv.Itoa(a.hw.Next())
}

// NextSoftwareID returns a fresh software info ID.
func (a *IDAllocator) NextSoftwareID() string {
	return strconv.Itoa(a.sw.Next())
}
