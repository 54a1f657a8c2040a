package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Host completed Ok
	SymbolFail     = "✗" // Host failed
	SymbolPending  = "○" // Host not yet dispatched
	SymbolComplete = "●" // Totals marker
	SymbolSkipped  = "⊘" // Host cancelled
	SymbolWarning  = "⚠"
	SymbolConnect  = "⇄" // Connecting or authenticating
)
