package hirlower

import "vamir/internal/mir"

// HirInterner is the per-function side table a MirBuilder fills in
// while lowering one module: every read site's backing Value, every
// write site's final Value, and every registered callback's kind. It
// is the bridge the DAE extractor, the topology analysis, and autodiff
// use to go from a raw mir.Function back to "this Value is node 3's
// voltage" or "this FuncRef is the ddx against unknown 2".
type HirInterner struct {
	params    map[ParamKind]mir.Value
	places    map[PlaceKind]mir.Value
	callbacks map[mir.FuncRef]CallBackKind
	nextFunc  mir.FuncRef
}

func newInterner() *HirInterner {
	return &HirInterner{
		params:    make(map[ParamKind]mir.Value),
		places:    make(map[PlaceKind]mir.Value),
		callbacks: make(map[mir.FuncRef]CallBackKind),
	}
}

// ParamValue returns the cached Value for kind and whether it has been
// read at least once.
func (in *HirInterner) ParamValue(kind ParamKind) (mir.Value, bool) {
	v, ok := in.params[kind]
	return v, ok
}

// PlaceValue returns the last value written to a place and whether it
// was ever written.
func (in *HirInterner) PlaceValue(kind PlaceKind) (mir.Value, bool) {
	v, ok := in.places[kind]
	return v, ok
}

// CallBack returns the kind registered for ref, for passes that need to
// interpret a call they found by scanning the function (e.g. the DAE
// extractor's noise-source collection, or autodiff routing a ddx call
// to the right unknown).
func (in *HirInterner) CallBack(ref mir.FuncRef) (CallBackKind, bool) {
	k, ok := in.callbacks[ref]
	return k, ok
}

// RegisterCallback allocates a fresh FuncRef for kind. MirBuilder.
// RegisterCallback delegates here during lowering; passes that run
// after lowering (the DAE extractor, introducing ddx pseudo-calls) use
// this directly since they no longer have the builder in scope.
func (in *HirInterner) RegisterCallback(kind CallBackKind) mir.FuncRef {
	ref := in.nextFunc
	in.nextFunc++
	in.callbacks[ref] = kind
	return ref
}

// AllocFuncRef reserves a fresh FuncRef from the same counter
// RegisterCallback uses, without recording a CallBackKind for it. The
// DAE extractor uses this for ephemeral ddx pseudo-targets: a call to
// one is rewritten in place by autodiff before the function is ever
// inspected again, so no persistent kind needs to be remembered.
func (in *HirInterner) AllocFuncRef() mir.FuncRef {
	ref := in.nextFunc
	in.nextFunc++
	return ref
}

// CallBacksOfTag returns every registered FuncRef with the given tag,
// in registration order. Used to re-find every ddx target, or every
// noise source, after optimization has run.
func (in *HirInterner) CallBacksOfTag(tag CallBackTag) []mir.FuncRef {
	var out []mir.FuncRef
	for ref := mir.FuncRef(0); ref < in.nextFunc; ref++ {
		if k, ok := in.callbacks[ref]; ok && k.Tag == tag {
			out = append(out, ref)
		}
	}
	return out
}
