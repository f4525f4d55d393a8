//go:build tinygo

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// Direct is the processor's own address space.
type Direct struct{}

func (Direct) Load32(addr uint32) uint32 {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
}

func (Direct) Store32(addr uint32, v uint32) {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(uintptr(addr))), v)
}
