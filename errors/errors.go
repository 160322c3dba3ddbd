package errors

import (
	goerrors "errors"
	"fmt"
)

// Connection-time failures, fatal to the attempt.
var (
	ErrMissingCredential = fmt.Errorf("missing credential")
	ErrInvalidCredential = fmt.Errorf("invalid credential")
	ErrExpiredCredential = fmt.Errorf("expired credential")
)

// Intent-time failures, reported to the offending connection only.
var (
	ErrNotAMember         = fmt.Errorf("not a member of the conversation")
	ErrForbidden          = fmt.Errorf("forbidden")
	ErrNotFound           = fmt.Errorf("not found")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrNotInConversation  = fmt.Errorf("not in conversation")
	ErrInternal           = fmt.Errorf("internal error")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrSlowConsumer       = fmt.Errorf("slow consumer")
	ErrConnectionClosed   = fmt.Errorf("connection closed")
	ErrUnknownEvent       = fmt.Errorf("%w: unknown event", ErrInvalidPayload)
	ErrEmptyContent       = fmt.Errorf("%w: content is empty", ErrInvalidPayload)
	ErrContentTooLong     = fmt.Errorf("%w: content is too long", ErrInvalidPayload)
	ErrDirectMemberCount  = fmt.Errorf("%w: direct conversation requires exactly one other member", ErrInvalidPayload)
	ErrGroupMemberCount   = fmt.Errorf("%w: group conversation requires at least one other member", ErrInvalidPayload)
	ErrUnknownMember      = fmt.Errorf("%w: unknown member", ErrInvalidPayload)
	ErrConversationExists = fmt.Errorf("direct conversation already exists")
)

// Accounts and runtime.
var (
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("invalid password")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrOnlyCensoredFiles  = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)

// Code is the value carried by the "code" field of an error event.
type Code string

const (
	CodeMissingCredential Code = "MissingCredential"
	CodeInvalidCredential Code = "InvalidCredential"
	CodeExpiredCredential Code = "ExpiredCredential"
	CodeNotAMember        Code = "NotAMember"
	CodeForbidden         Code = "Forbidden"
	CodeNotFound          Code = "NotFound"
	CodeInvalidPayload    Code = "InvalidPayload"
	CodeNotInConversation Code = "NotInConversation"
	CodeRateLimited       Code = "RateLimited"
	CodeConnectionClosed  Code = "ConnectionClosed"
	CodeInternalError     Code = "InternalError"
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrMissingCredential, CodeMissingCredential},
	{ErrInvalidCredential, CodeInvalidCredential},
	{ErrExpiredCredential, CodeExpiredCredential},
	{ErrNotAMember, CodeNotAMember},
	{ErrForbidden, CodeForbidden},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidPayload, CodeInvalidPayload},
	{ErrNotInConversation, CodeNotInConversation},
	{ErrRateLimited, CodeRateLimited},
	{ErrConnectionClosed, CodeConnectionClosed},
}

// CodeOf maps any (possibly wrapped) error onto its wire code.
// Everything outside the taxonomy collapses to InternalError.
func CodeOf(err error) Code {
	for _, c := range codes {
		if goerrors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternalError
}

// PublicMessage is the text safe to hand back to a client.
// Internal failures never leak their cause.
func PublicMessage(err error) string {
	if CodeOf(err) == CodeInternalError {
		return ErrInternal.Error()
	}
	return err.Error()
}

func Is(err, target error) bool {
	return goerrors.Is(err, target)
}
