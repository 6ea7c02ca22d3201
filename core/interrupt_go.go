//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqMu stands in for the interrupt mask when the firmware runs on a host.
// Event handlers are then delivered from other goroutines, so the mask has
// to actually exclude them. Critical sections must not nest.
var irqMu sync.Mutex

// disableInterrupts locks out event handlers (regular Go)
func disableInterrupts() State {
	irqMu.Lock()
	return 1
}

// restoreInterrupts lets event handlers run again (regular Go)
func restoreInterrupts(state State) {
	irqMu.Unlock()
}
