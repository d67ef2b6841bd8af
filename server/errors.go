package server

import (
	"errors"
	"strconv"

	"github.com/mnehpets/onerpc/httpwire"
)

// Stage identifies a step of the connection pipeline.
type Stage int

const (
	StageConfigure Stage = iota
	StageRequestLine
	StageMethod
	StageVersion
	StageHeaders
	StageBody
	StageDecode
	StageDispatch
	StageEncode
	StageWrite
)

var stageNames = [...]string{
	StageConfigure:   "configure",
	StageRequestLine: "request line",
	StageMethod:      "method",
	StageVersion:     "version",
	StageHeaders:     "headers",
	StageBody:        "body",
	StageDecode:      "decode",
	StageDispatch:    "dispatch",
	StageEncode:      "encode",
	StageWrite:       "write",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "stage(" + strconv.Itoa(int(s)) + ")"
}

var (
	ErrMethodNotAllowed    = errors.New("method not allowed")
	ErrVersionNotSupported = errors.New("http version not supported")
	ErrBodyTooLarge        = errors.New("body too large")
	ErrInvalidEncoding     = errors.New("body is not valid utf-8")
	ErrNilHandler          = errors.New("nil handler")
	ErrHandlerPanic        = errors.New("handler panic")
	ErrPipelinePanic       = errors.New("pipeline panic")
	ErrServerClosed        = errors.New("server: closed")
)

// StageError records the pipeline stage that ended a connection and the
// status written for it. Status is zero when the connection was dropped
// without a response.
type StageError struct {
	Stage  Stage
	Status httpwire.Status
	Cause  error
}

func (e *StageError) Error() string {
	if e == nil {
		return "server: stage error: <nil>"
	}
	msg := "server: " + e.Stage.String()
	if e.Status != 0 {
		msg += " (" + e.Status.String() + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func stageError(stage Stage, status httpwire.Status, cause error) *StageError {
	return &StageError{Stage: stage, Status: status, Cause: cause}
}
