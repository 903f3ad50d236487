package ir

// Version constants for the IR schema and the pass.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// PassVersion is the version of the wrapper-erasure pass.
	PassVersion = "0.1.0"
)
