package interfaces

import "time"

// IClock abstracts wall-clock time so phases can be simulated.
type IClock interface {
	Now() time.Time
}
