package scenario

import (
	"fmt"
	"log"
)

// AssertionMode controls what a failed expectation does.
type AssertionMode int

const (
	// AssertionStrict stops the scenario at the first failed expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs failed expectations and keeps playing.
	AssertionLogOnly
)

// Assertions reports failed expectations according to Mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf returns an error in strict mode and logs it otherwise.
func (a Assertions) Failf(format string, args ...any) error {
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("expectation failed: "+format, args...)
		}
		return nil
	}
	return fmt.Errorf(format, args...)
}
