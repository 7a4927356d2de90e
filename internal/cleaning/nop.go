// Package cleaning holds the cleaning policy registry. Policies track dirty
// data bookkeeping; the actual writeback is the cleaner's job. The engine
// consults the active policy's optional per-line init hook when a cache line
// first hosts data.
package cleaning

// Nop is the no-op cleaning policy: no per-line state, no init hook.
type Nop struct{}

// Name returns the policy name.
func (Nop) Name() string { return "nop" }
