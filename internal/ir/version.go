package ir

// Version constants.
const (
	// LinkFormatVersion is the version of the "ctx:id;ctx:id" link encoding.
	LinkFormatVersion = "1"

	// EngineVersion is the babel engine version.
	EngineVersion = "0.1.0"
)
