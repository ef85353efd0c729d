package memory

import (
	"fmt"
	"sync"
)

const bufferPage = 0x1000

// Buffer is a Space made of byte slices mapped at synthetic addresses.
// Installers and scanners run against it unchanged, which makes patch
// results inspectable without touching the live process.
type Buffer struct {
	mu      sync.Mutex
	regions []*region
	next    uintptr
	patches int
}

type region struct {
	base uintptr
	data []byte
}

// NewBuffer returns an empty Buffer whose allocations start at 0x10000.
func NewBuffer() *Buffer {
	return &Buffer{next: 0x10000}
}

// Map places data at base. The slice is used directly, so callers observe
// writes made through the Buffer.
func (b *Buffer) Map(base uintptr, data []byte) error {
	if base == 0 {
		return ErrNullPointer
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	end := base + uintptr(len(data))
	for _, r := range b.regions {
		if base < r.base+uintptr(len(r.data)) && r.base < end {
			return fmt.Errorf("map %#x: overlaps region at %#x", base, r.base)
		}
	}
	b.regions = append(b.regions, &region{base: base, data: data})
	if end+bufferPage > b.next {
		b.next = alignUp(end+bufferPage, bufferPage)
	}
	return nil
}

// MapBytes copies data into a fresh region and returns its address.
func (b *Buffer) MapBytes(data []byte) uintptr {
	blk, _ := b.Alloc(len(data))
	buf := blk.(*bufferBlock)
	copy(buf.r.data, data)
	return buf.Addr()
}

// Bytes returns the mapped bytes at addr, for inspection in tests.
func (b *Buffer) Bytes(addr uintptr, n int) []byte {
	out := make([]byte, n)
	if err := b.Read(addr, out); err != nil {
		return nil
	}
	return out
}

// Patches reports how many Patch calls succeeded.
func (b *Buffer) Patches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.patches
}

func (b *Buffer) find(addr uintptr, n int) ([]byte, error) {
	if addr == 0 {
		return nil, ErrNullPointer
	}
	for _, r := range b.regions {
		if addr >= r.base && addr-r.base+uintptr(n) <= uintptr(len(r.data)) {
			off := addr - r.base
			return r.data[off : off+uintptr(n)], nil
		}
	}
	return nil, fmt.Errorf("%w: %#x+%d", ErrOutOfRange, addr, n)
}

func (b *Buffer) Read(addr uintptr, dst []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	src, err := b.find(addr, len(dst))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

func (b *Buffer) Write(addr uintptr, src []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	dst, err := b.find(addr, len(src))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

func (b *Buffer) Patch(addr uintptr, src []byte, _ Prot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	dst, err := b.find(addr, len(src))
	if err != nil {
		return err
	}
	copy(dst, src)
	b.patches++
	return nil
}

func (b *Buffer) Slice(addr uintptr, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.find(addr, n)
}

func (b *Buffer) Alloc(size int) (Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("alloc %d bytes: %w", size, ErrOutOfRange)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r := &region{base: b.next, data: make([]byte, size)}
	b.regions = append(b.regions, r)
	b.next = alignUp(b.next+uintptr(size)+bufferPage, bufferPage)
	return &bufferBlock{b: b, r: r}, nil
}

func (b *Buffer) unmap(r *region) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.regions {
		if cur == r {
			b.regions = append(b.regions[:i], b.regions[i+1:]...)
			return
		}
	}
}

type bufferBlock struct {
	b     *Buffer
	r     *region
	freed bool
}

func (k *bufferBlock) Addr() uintptr { return k.r.base }
func (k *bufferBlock) Len() int      { return len(k.r.data) }

func (k *bufferBlock) Free() error {
	if k.freed {
		return nil
	}
	k.freed = true
	k.b.unmap(k.r)
	return nil
}

func alignUp(v, a uintptr) uintptr {
	return (v + a - 1) &^ (a - 1)
}
