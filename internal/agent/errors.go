package agent

import (
	"errors"
	"strings"

	"dietolog/internal/llm"
	"dietolog/internal/logic"
	"dietolog/internal/store"
	"dietolog/internal/validate"
)

// ErrNotFound reports a meal or document the user referred to that does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyConfirmed reports a confirmation of a meal that was already
// counted; the summary is never touched twice.
var ErrAlreadyConfirmed = errors.New("meal already confirmed")

// ErrInvalidInput reports user input outside the accepted range.
var ErrInvalidInput = errors.New("invalid input")

// UserMessage converts any error leaving the agent layer into a polite,
// user-facing string. Raw provider and filesystem details never cross
// the transport boundary.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrProviderTimeout):
		return "The assistant is taking too long to answer. Please try again in a minute."
	case errors.Is(err, llm.ErrProviderError):
		return "The assistant is temporarily unavailable. Please try again later."
	case errors.Is(err, validate.ErrValidation):
		return "I could not make sense of that. Could you rephrase your message?"
	case errors.Is(err, logic.ErrIncompleteProfile):
		return "Your profile is missing some details (" + missingField(err) + "). Please fill them in first."
	case errors.Is(err, store.ErrStoreIO):
		return "Something went wrong while saving your data. Please try again."
	case errors.Is(err, ErrAlreadyConfirmed):
		return "That meal is already confirmed."
	case errors.Is(err, ErrInvalidInput):
		return "Please enter a number between 1 and 100."
	case errors.Is(err, ErrNotFound):
		return "I could not find that entry."
	default:
		return "Something went wrong. Please try again."
	}
}

// logic wraps ErrIncompleteProfile as "incomplete profile: <field>".
func missingField(err error) string {
	msg := err.Error()
	const prefix = "incomplete profile: "
	if strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return "basic details"
}
