package rtfx

// allocateChannels maps a track's channel count onto processors with fixed
// input and output arity. The output offset advances by numOut until all
// channels are covered; the input offset advances by numIn and wraps modulo
// chans, so a processor demanding more input channels than remain reuses
// earlier channels cyclically. fn is invoked once per processor with the
// input and output offsets and may return false to abort the iteration.
//
// AddTrack and Process both traverse with this function; the two traversals
// must stay in lock-step, so any change here affects both.
func allocateChannels(chans, numIn, numOut int, fn func(in, out int) bool) {
	if chans < 1 || numIn < 1 || numOut < 1 {
		return
	}
	in := 0
	for out := 0; out < chans; out += numOut {
		if !fn(in, out) {
			return
		}
		in += numIn
		in %= chans
	}
}
