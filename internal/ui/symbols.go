package ui

// Status symbols for command output.
const (
	SymbolSuccess = "✓"
	SymbolFail    = "✗"
	SymbolWarn    = "!"
	SymbolPending = "○"
	SymbolDone    = "●"
)
