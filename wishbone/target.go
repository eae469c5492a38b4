package wishbone

import (
	"sort"
	"sync"
)

// Target performs bus cycles. It is called once per acknowledged request.
type Target interface {
	Read(addr uint64) uint64
	Write(addr, data uint64, sel uint8)
}

// RegisterFile is a sparse word-addressed memory. Unwritten words read as
// zero. It is safe to inspect from another goroutine while the bus runs.
type RegisterFile struct {
	lock  sync.Mutex
	width int
	words map[uint64]uint64
}

// NewRegisterFile creates an empty register file with words of dataWidth
// bits.
func NewRegisterFile(dataWidth int) *RegisterFile {
	return &RegisterFile{
		width: dataWidth,
		words: make(map[uint64]uint64),
	}
}

// Read returns the word at addr.
func (f *RegisterFile) Read(addr uint64) uint64 {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.words[addr]
}

// Write updates the byte lanes of the word at addr that sel enables. Bit i
// of sel enables byte i, counting from the least significant byte.
func (f *RegisterFile) Write(addr, data uint64, sel uint8) {
	f.lock.Lock()
	defer f.lock.Unlock()

	mask := laneMask(sel, f.width)
	f.words[addr] = f.words[addr]&^mask | data&mask
}

// Poke sets a word directly, bypassing byte selects.
func (f *RegisterFile) Poke(addr, data uint64) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.words[addr] = data & widthMask(f.width)
}

// Addresses returns the written addresses in ascending order.
func (f *RegisterFile) Addresses() []uint64 {
	f.lock.Lock()
	defer f.lock.Unlock()

	addrs := make([]uint64, 0, len(f.words))
	for a := range f.words {
		addrs = append(addrs, a)
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	return addrs
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}

	return 1<<uint(width) - 1
}

func laneMask(sel uint8, width int) uint64 {
	var mask uint64

	for lane := 0; lane < 8; lane++ {
		if sel&(1<<uint(lane)) != 0 {
			mask |= 0xFF << (8 * uint(lane))
		}
	}

	return mask & widthMask(width)
}
