package common

import "errors"

// ErrPaused rejects state-mutating operations while the vault pause switch is
// engaged.
var ErrPaused = errors.New("vault paused")

// PauseView exposes the global pause switch to guarded modules.
type PauseView interface {
	IsPaused() bool
}

// Guard rejects the call when the vault is paused. A nil view never blocks.
func Guard(p PauseView) error {
	if p == nil {
		return nil
	}
	if p.IsPaused() {
		return ErrPaused
	}
	return nil
}
