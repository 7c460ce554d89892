package types

// Version is the canonical project version.
// The CLI, the summary record schema and the measurement container writer
// share this version.
const Version = "0.3.0"

// RecordSchemaVersion is written into every published dataset record.
// Bumped independently of Version when the record layout changes.
const RecordSchemaVersion = "1"
