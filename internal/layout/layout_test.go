package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vamir/internal/hir"
	"vamir/internal/initsplit"
)

func TestBuildOrdersInstanceBitsBeforeModelBits(t *testing.T) {
	module := &hir.ModuleInfo{
		Params: []hir.Param{
			{Name: "r", IsInstance: true},
			{Name: "tnom", IsInstance: false},
			{Name: "tc1", IsInstance: true},
		},
	}
	l := Build(module, nil)

	assert.Len(t, l.InstanceParams, 2)
	assert.Len(t, l.ModelParams, 1)
	assert.Equal(t, 0, l.InstanceParams[0].GivenBit)
	assert.Equal(t, 1, l.InstanceParams[1].GivenBit)
	assert.Equal(t, 2, l.ModelParams[0].GivenBit)
	assert.Equal(t, 3, l.GivenBitsLen)
}

func TestGivenBitRoundTrips(t *testing.T) {
	bits := make([]uint8, GivenBitsBytes(10))
	SetGivenBit(bits, 9)
	assert.True(t, GivenBit(bits, 9))
	assert.False(t, GivenBit(bits, 8))
}

func TestBuildAppendsCacheSlotsAfterParams(t *testing.T) {
	module := &hir.ModuleInfo{Params: []hir.Param{{Name: "r", IsInstance: true}}}
	slots := []initsplit.CacheSlot{{Name: "r_eff"}, {Name: "gmin"}}
	l := Build(module, slots)
	assert.Len(t, l.CacheSlots, 2)
	assert.Equal(t, "r_eff", l.CacheSlots[0].Name)
}
