// Package streamerr implements the closed, platform-neutral error taxonomy
// described for this system: Offline, Network, Api, Internal. Resolvers and
// danmaku clients return free text; the unified command is the single place
// that classifies it, via Classify.
package streamerr

import (
	"errors"
	"strings"
)

// Kind is the closed error taxonomy.
type Kind int

const (
	Internal Kind = iota
	Offline
	Network
	Api
)

func (k Kind) String() string {
	switch k {
	case Offline:
		return "offline"
	case Network:
		return "network"
	case Api:
		return "api"
	default:
		return "internal"
	}
}

// Error wraps an underlying cause with a classification.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind carried by err, or Internal if err is not (or does
// not wrap) a *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Internal
}

var offlineMarkers = []string{
	"未开播", "not live", "room is not live", "not found", "error: 1", "error: 102",
}

var networkMarkers = []string{
	"network", "timeout", "connection",
}

// Classify applies the heuristic free-text classification C9 uses on a
// resolver's ErrorMessage: offline markers first, then network markers,
// otherwise Api. This is the only place in the codebase that classifies
// resolver error text.
func Classify(message string) Kind {
	lower := strings.ToLower(message)
	for _, m := range offlineMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return Offline
		}
	}
	for _, m := range networkMarkers {
		if strings.Contains(lower, m) {
			return Network
		}
	}
	return Api
}
