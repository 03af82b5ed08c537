package dae

import (
	"vamir/internal/hirlower"
	"vamir/internal/mir"
)

var noiseTags = []hirlower.CallBackTag{
	hirlower.CallbackWhiteNoise,
	hirlower.CallbackFlickerNoise,
	hirlower.CallbackNoiseTable,
}

// collectNoise re-discovers every remaining noise callback invocation
// by FuncRef, the way the interner was designed for: lowering may have
// happened long before optimization duplicated or moved the call sites,
// so the only stable handle is the callee, not an instruction position.
func collectNoise(fn *mir.Function, interner *hirlower.HirInterner) []NoiseSource {
	var out []NoiseSource
	for _, tag := range noiseTags {
		for _, ref := range interner.CallBacksOfTag(tag) {
			for _, block := range fn.BlockOrder() {
				for _, inst := range fn.IterInst(block) {
					data := fn.InstKind(inst)
					if data.Op != mir.OpCall || data.Callee != ref {
						continue
					}
					if len(data.Args) == 0 {
						continue
					}
					out = append(out, NoiseSource{Tag: tag, Factor: data.Args[0], Args: data.Args[1:]})
				}
			}
		}
	}
	return out
}
