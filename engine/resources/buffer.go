package resources

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

// Buffer owns a block of pixel data. Ownership moves with Move; the source
// is left empty and any further Move on it fails.
type Buffer struct {
	mutex sync.Mutex
	data  []byte
	moved bool
}

// NewBuffer takes ownership of data. The caller must not keep using it.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Move transfers the bytes to a new Buffer.
func (b *Buffer) Move() (*Buffer, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil buffer", core.ErrImageConsumed)
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.moved {
		return nil, core.ErrImageConsumed
	}
	out := &Buffer{data: b.data}
	b.data = nil
	b.moved = true
	return out, nil
}

// Bytes exposes the owned bytes for reading. Nil after a move.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.data
}

func (b *Buffer) Len() int {
	return len(b.Bytes())
}

func (b *Buffer) Moved() bool {
	if b == nil {
		return true
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.moved
}
