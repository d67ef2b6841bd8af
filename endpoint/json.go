package endpoint

import (
	"encoding/json"
	"net/http"
)

// JSONRenderer serializes Value as JSON with a trailing newline.
//
// Content-Type is always "application/json". Status defaults to 200. HTML
// characters are not escaped.
type JSONRenderer struct {
	Status int
	Value  any
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json")

	status := jr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(jr.Value)
}
