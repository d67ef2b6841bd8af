// Package httpwire models the small subset of HTTP/1.x that the RPC server
// speaks on the wire.
//
// Parsing is deliberately lenient and not RFC compliant: request lines are
// split on single spaces, header lines on the literal ": ", and nothing is
// percent-decoded or folded. Responses serialize as
//
//	<version> <code> <phrase>\r\n\r\n<body>
//
// with no header lines at all.
package httpwire

import "strconv"

// Status is an HTTP status code from the closed set the server can produce.
type Status uint16

const (
	StatusOK                      Status = 200
	StatusBadRequest              Status = 400
	StatusMethodNotAllowed        Status = 405
	StatusInternalServerError     Status = 500
	StatusHTTPVersionNotSupported Status = 505
)

// Phrase returns the canonical reason phrase, or "Unknown" for codes outside
// the registry.
func (s Status) Phrase() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusInternalServerError:
		return "Internal Server Error"
	case StatusHTTPVersionNotSupported:
		return "HTTP Version Not Supported"
	default:
		return "Unknown"
	}
}

// Code returns the numeric status code.
func (s Status) Code() int {
	return int(s)
}

func (s Status) String() string {
	return strconv.Itoa(int(s)) + " " + s.Phrase()
}
