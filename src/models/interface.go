package models

import "context"

// Agent is a text-in/text-out model connection. Generate returns the raw
// completion; callers flatten it with fmt.Sprint when it is not a string.
type Agent interface {
	Generate(context.Context, string) (any, error)
}

// Verifier is implemented by connections that can cheaply check their
// credential before any real work is dispatched.
type Verifier interface {
	Verify(context.Context) error
}

// ObservationStop is the stop sequence sent to providers that support one.
// It keeps the model from inventing tool results.
const ObservationStop = "\nObservation"
