// Package layout assigns deterministic storage slots to a module's
// parameters and to the cache slots initsplit produces, matching the
// binary-compatible model/instance record shapes downstream OSDI
// emission depends on.
package layout

import (
	"vamir/internal/hir"
	"vamir/internal/initsplit"
)

// ParamSlot is one parameter's position within its scope (model or
// instance) plus its "given" bit index within the model record's
// shared bitfield.
type ParamSlot struct {
	Param    hir.ParamId
	Name     string
	Instance bool
	Index    int // position within its own scope's slot array
	GivenBit int // bit index into the model record's given_bits[N]
}

// CacheSlotLayout places one initsplit.CacheSlot after the parameter
// slots, in the instance record.
type CacheSlotLayout struct {
	Name  string
	Index int
}

// Layout is the full instance/model data layout for one module.
type Layout struct {
	ModelParams    []ParamSlot // declaration-order, IsInstance == false
	InstanceParams []ParamSlot // declaration-order, IsInstance == true
	CacheSlots     []CacheSlotLayout
	GivenBitsLen   int // len(model_params)+len(instance_params), in bits
}

// Build assigns slots to module's parameters in declaration order —
// instance bits first, then model bits, matching the model record's
// `given_bits[N]` layout — and appends the init/eval split's cache
// slots after them in the instance record.
func Build(module *hir.ModuleInfo, slots []initsplit.CacheSlot) *Layout {
	l := &Layout{}
	bit := 0
	for i, p := range module.Params {
		if !p.IsInstance {
			continue
		}
		l.InstanceParams = append(l.InstanceParams, ParamSlot{
			Param: hir.ParamId(i), Name: p.Name, Instance: true,
			Index: len(l.InstanceParams), GivenBit: bit,
		})
		bit++
	}
	for i, p := range module.Params {
		if p.IsInstance {
			continue
		}
		l.ModelParams = append(l.ModelParams, ParamSlot{
			Param: hir.ParamId(i), Name: p.Name, Instance: false,
			Index: len(l.ModelParams), GivenBit: bit,
		})
		bit++
	}
	l.GivenBitsLen = bit

	for i, s := range slots {
		l.CacheSlots = append(l.CacheSlots, CacheSlotLayout{Name: s.Name, Index: i})
	}
	return l
}

// GivenBit extracts bit i of a packed given_bits byte array — the
// helper default-handling code uses to test whether the simulator
// supplied a value for the parameter at that bit index.
func GivenBit(bits []uint8, i int) bool {
	byteIdx := i / 8
	bitIdx := uint(i % 8)
	return bits[byteIdx]&(1<<bitIdx) != 0
}

// SetGivenBit sets bit i of a packed given_bits byte array.
func SetGivenBit(bits []uint8, i int) {
	byteIdx := i / 8
	bitIdx := uint(i % 8)
	bits[byteIdx] |= 1 << bitIdx
}

// GivenBitsBytes returns how many bytes a given_bits array of n bits
// needs.
func GivenBitsBytes(n int) int {
	return (n + 7) / 8
}
