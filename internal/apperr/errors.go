// Package apperr classifies failures so transports can map them to responses
// without inspecting storage or provider errors directly.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindAuthenticity Kind = "authenticity"
	KindNotFound     Kind = "not_found"
	KindPersistence  Kind = "persistence"
	KindUpstream     Kind = "upstream"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func Authenticity(msg string) error {
	return &Error{Kind: KindAuthenticity, Msg: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func Persistence(msg string, err error) error {
	return &Error{Kind: KindPersistence, Msg: msg, Err: err}
}

func Upstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus maps err to a response code. Unclassified errors are 500.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthenticity:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to a client. Persistence and
// upstream details stay in the logs.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusText(http.StatusInternalServerError)
	}

	switch e.Kind {
	case KindPersistence:
		return http.StatusText(http.StatusInternalServerError)
	case KindUpstream:
		if e.Msg != "" {
			return e.Msg
		}
		return http.StatusText(http.StatusBadGateway)
	default:
		return e.Msg
	}
}
