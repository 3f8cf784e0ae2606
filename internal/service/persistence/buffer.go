package persistence

// Buffer is a fixed-capacity FIFO ring of masks. Pushing onto a full buffer
// evicts the oldest mask.
type Buffer struct {
	masks []*Mask
	head  int // index of the oldest mask
	size  int
}

func NewBuffer(capacity int) *Buffer {
	capacity = min(max(capacity, 1), 255)
	return &Buffer{masks: make([]*Mask, capacity)}
}

func (b *Buffer) Push(m *Mask) {
	if b.size < len(b.masks) {
		b.masks[(b.head+b.size)%len(b.masks)] = m
		b.size++
		return
	}
	b.masks[b.head] = m
	b.head = (b.head + 1) % len(b.masks)
}

func (b *Buffer) Len() int { return b.size }

func (b *Buffer) Cap() int { return len(b.masks) }

// Masks returns the buffered masks oldest first.
func (b *Buffer) Masks() []*Mask {
	out := make([]*Mask, b.size)
	for i := range out {
		out[i] = b.masks[(b.head+i)%len(b.masks)]
	}
	return out
}

func (b *Buffer) Reset() {
	for i := range b.masks {
		b.masks[i] = nil
	}
	b.head, b.size = 0, 0
}

// Sum adds the buffered masks elementwise. With a capacity of a few masks
// the per-pixel count fits in a byte.
func (b *Buffer) Sum() []uint8 {
	if b.size == 0 {
		return nil
	}
	first := b.masks[b.head]
	acc := make([]uint8, len(first.Bits))
	for i := 0; i < b.size; i++ {
		for j, v := range b.masks[(b.head+i)%len(b.masks)].Bits {
			acc[j] += v
		}
	}
	return acc
}
