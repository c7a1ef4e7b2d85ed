package value

// Key is an interned identifier (spec §3.2). Two interning calls for equal
// text return the same *Key; identity comparison (pointer equality) is the
// canonical equality test, never string comparison.
type Key struct {
	Hash uint32
	Text string
}
