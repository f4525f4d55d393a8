// Package mmio models memory-mapped peripheral registers.
//
// A register is a fixed address on a Bus. On the target the bus is the
// processor's own address space; on a host it is usually a simulator.
// Every access goes through the bus, so nothing is cached between a
// load and the next one.
package mmio

// Bus performs 32-bit loads and stores at absolute addresses.
type Bus interface {
	Load32(addr uint32) uint32
	Store32(addr uint32, v uint32)
}

// Reg is one 32-bit register at a fixed address on a bus.
type Reg struct {
	bus  Bus
	addr uint32
}

// NewReg binds a register to addr on bus.
func NewReg(bus Bus, addr uint32) Reg {
	return Reg{bus: bus, addr: addr}
}

// Addr returns the absolute address of the register.
func (r Reg) Addr() uint32 { return r.addr }

// Load reads the register.
func (r Reg) Load() uint32 { return r.bus.Load32(r.addr) }

// Store writes v to the register.
func (r Reg) Store(v uint32) { r.bus.Store32(r.addr, v) }

// SetBits is a read-modify-write that sets every bit in mask.
func (r Reg) SetBits(mask uint32) { r.Store(r.Load() | mask) }

// ClearBits is a read-modify-write that clears every bit in mask.
func (r Reg) ClearBits(mask uint32) { r.Store(r.Load() &^ mask) }

// HasBits reports whether every bit in mask reads as set.
func (r Reg) HasBits(mask uint32) bool { return r.Load()&mask == mask }

// Get reads the register and extracts f.
func (r Reg) Get(f Field) uint32 { return f.Get(r.Load()) }

// Set replaces f with v, leaving the other bits untouched.
func (r Reg) Set(f Field, v uint32) { r.Store(f.Put(r.Load(), v)) }

// Field is a contiguous bit range inside a register.
type Field struct {
	Pos   uint8
	Width uint8
}

// Mask returns the in-place mask of the field.
func (f Field) Mask() uint32 {
	return (uint32(1)<<f.Width - 1) << f.Pos
}

// Value shifts v into place, truncating it to the field width.
func (f Field) Value(v uint32) uint32 {
	return (v << f.Pos) & f.Mask()
}

// Get extracts the field from a register value.
func (f Field) Get(reg uint32) uint32 {
	return (reg & f.Mask()) >> f.Pos
}

// Put returns reg with the field replaced by v.
func (f Field) Put(reg, v uint32) uint32 {
	return reg&^f.Mask() | f.Value(v)
}
