package internal

// ProbeJitter advances a per-session pseudo-random state, seeded once from
// the session's conv so many sessions stalled on a zero remote window don't all
// retry their WASK probe in lockstep.
//
// Xorshift32, Marsaglia "Xorshift RNGs" p. 4.
func ProbeJitter(seed uint32) uint32 {
	seed ^= seed << 13
	seed ^= seed >> 17
	seed ^= seed << 5
	return seed
}
