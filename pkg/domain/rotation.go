package domain

import "time"

type rotationStatus int

const (
	// Rotation performed, writer notified (or no hook configured)
	RotationStatusSuccess rotationStatus = iota

	// Rotation failed and was rolled back
	RotationStatusFailure

	// Rotation performed, but the post-rotate hook failed
	RotationStatusSignalFailed
)

// Rotation is the bookkeeping record of one rotation attempt. It exists for
// observability only: the generation ledger itself lives in the filesystem
// naming convention and is never read back from the database.
type Rotation struct {
	Id int64 // identifier for DB

	Policy string
	Path   string

	// head of the generation chain produced by this rotation, if any
	GenerationPath string

	SizeBytes  int64
	DurationMs int64

	Status rotationStatus
	Error  string

	CreatedAt time.Time
}
