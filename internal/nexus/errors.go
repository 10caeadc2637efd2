package nexus

import "errors"

// Registration errors returned to endpoint threads. Misuse never terminates
// the process; callers get a value and decide.
var (
	// ErrInvalidReqType is returned by RegisterOps for a malformed handler
	// descriptor (nil request function).
	ErrInvalidReqType = errors.New("invalid request type registration")

	// ErrRegistrationClosed is returned by RegisterOps once any endpoint
	// has registered a hook. Handler registration is startup-only.
	ErrRegistrationClosed = errors.New("ops registration closed")

	// ErrDuplicateID is returned by RegisterHook when the endpoint identity
	// slot is already occupied.
	ErrDuplicateID = errors.New("endpoint identity already registered")

	// ErrNotRegistered is returned by UnregisterHook when the hook does not
	// occupy its identity slot.
	ErrNotRegistered = errors.New("hook not registered")

	// ErrInvalidWorker is returned by Hook.SubmitBgWork for a worker index
	// outside the pool.
	ErrInvalidWorker = errors.New("background worker index out of range")
)
