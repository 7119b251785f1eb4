package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrGeneration - the model produced no usable structured plan
	ErrGeneration = errors.New("plan generation failed")

	// ErrValidation - the plan references unknown tools or capabilities
	ErrValidation = errors.New("plan validation failed")

	// ErrConsentRequired - a risk-gated call has no valid consent grant
	ErrConsentRequired = errors.New("consent required")

	// ErrToolExecution - a tool invocation reported failure
	ErrToolExecution = errors.New("tool execution failed")

	// ErrPermissionDenied - permission denied by policy or the OS
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidInput - invalid input supplied by the caller or the plan
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrTransient - transient error, safe to retry with backoff
	ErrTransient = errors.New("transient error")

	// ErrInvalidModelOutput - model returned malformed structured output
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrVaultSealed - the vault blob could not be decrypted
	ErrVaultSealed = errors.New("vault sealed")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
