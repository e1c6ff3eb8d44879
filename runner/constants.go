package runner

import "time"

const (
	// DefaultCommandTimeout bounds commands that configure no timeout of
	// their own.
	DefaultCommandTimeout = 10 * time.Minute

	// maxErrorOutputLines is how much command output an error message carries.
	maxErrorOutputLines = 20
)
