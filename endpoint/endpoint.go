// Package endpoint adapts small handler functions to net/http for the
// operator API.
//
// An EndpointFunc does the work of a request and returns a Renderer; it does
// not write to the response itself. Processors run before the EndpointFunc
// and may set headers or short-circuit with an error. Errors are written as
// a JSON body {"error": "..."} with the status carried by *EndpointError, or
// 500 for any other error. Only EndpointError messages reach the client.
package endpoint

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

// EndpointError is a client-visible error that maps directly to an HTTP
// status code.
type EndpointError struct {
	Status int
	// Message is a short description written in the error body.
	Message string
	Cause   error
}

func (e *EndpointError) Error() string {
	if e == nil {
		return "endpoint: error: <nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Error creates an *EndpointError. An err that already is one is returned
// unchanged.
func Error(status int, message string, err error) error {
	var ee *EndpointError
	if errors.As(err, &ee) {
		return err
	}
	return &EndpointError{Status: status, Message: message, Cause: err}
}

// Renderer writes a response. Renderers MUST call w.WriteHeader and may set
// Content-Type before doing so.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(w http.ResponseWriter, r *http.Request) error

func (f RendererFunc) Render(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// Processor runs before the EndpointFunc. It MUST call next unless it
// short-circuits with an error, and MUST NOT write the status or body.
type Processor interface {
	Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error

func (f ProcessorFunc) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	return f(w, r, next)
}

// EndpointFunc returns the Renderer for a request, or an error.
type EndpointFunc func(w http.ResponseWriter, r *http.Request) (Renderer, error)

// EndpointHandler is the http.Handler wrapper for an EndpointFunc.
type EndpointHandler struct {
	Endpoint   EndpointFunc
	Processors []Processor
	// Logger receives failures that happen after the status was written.
	// Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Handler constructs an EndpointHandler.
func Handler(fn EndpointFunc, processors ...Processor) *EndpointHandler {
	return &EndpointHandler{
		Endpoint:   fn,
		Processors: processors,
	}
}

// HandleFunc adapts an EndpointFunc into an http.HandlerFunc.
func HandleFunc(fn EndpointFunc, processors ...Processor) http.HandlerFunc {
	return Handler(fn, processors...).ServeHTTP
}

// headerWriter records whether the status line has been written.
type headerWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *headerWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (h *EndpointHandler) logger() logrus.FieldLogger {
	if h.Logger == nil {
		return logrus.StandardLogger()
	}
	return h.Logger
}

// ServeHTTP implements http.Handler.
func (h *EndpointHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hw := &headerWriter{ResponseWriter: w}

	var run func(i int, w2 http.ResponseWriter, r2 *http.Request) error
	run = func(i int, w2 http.ResponseWriter, r2 *http.Request) error {
		if i < len(h.Processors) {
			if h.Processors[i] == nil {
				return errors.New("endpoint: nil processor")
			}
			return h.Processors[i].Process(w2, r2, func(w3 http.ResponseWriter, r3 *http.Request) error {
				return run(i+1, w3, r3)
			})
		}

		if h.Endpoint == nil {
			return errors.New("endpoint: nil EndpointFunc")
		}
		renderer, err := h.Endpoint(w2, r2)
		if err != nil {
			return err
		}
		if renderer == nil {
			return errors.New("endpoint: nil renderer")
		}
		return renderer.Render(w2, r2)
	}

	err := run(0, hw, r)
	if err == nil {
		return
	}

	log := h.logger().WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path})
	if hw.wroteHeader {
		log.WithError(err).Warn("endpoint: response failed after status was written")
		return
	}

	status := http.StatusInternalServerError
	var message string
	var ee *EndpointError
	if errors.As(err, &ee) && ee != nil {
		if ee.Status >= 100 {
			status = ee.Status
		}
		message = ee.Message
	}
	if message == "" {
		message = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("endpoint failed")
	}

	er := &JSONRenderer{Status: status, Value: map[string]string{"error": message}}
	if rerr := er.Render(hw, r); rerr != nil {
		log.WithError(rerr).Warn("endpoint: writing error response failed")
	}
}
