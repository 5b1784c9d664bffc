package frame

import "fmt"

// ContextRequiredError is returned when a contextual function is called
// where no context frame is available.
type ContextRequiredError struct {
	Function string
}

// Error implements the error interface for ContextRequiredError.
func (e *ContextRequiredError) Error() string {
	return fmt.Sprintf("%s() can only be used when context is known", e.Function)
}

// Hint is the remedy shown along with the error.
func (e *ContextRequiredError) Hint() string {
	return "try wrapping this in a context block"
}
