package httpx

import (
	"net/http"

	"github.com/sundayezeilo/microblog/internal/errx"
)

type kindMapping struct {
	status int
	code   string
}

var kindMappings = map[errx.Kind]kindMapping{
	errx.NotFound:    {http.StatusNotFound, "not_found"},
	errx.Conflict:    {http.StatusConflict, "conflict"},
	errx.Invalid:     {http.StatusBadRequest, "invalid_input"},
	errx.Unavailable: {http.StatusServiceUnavailable, "unavailable"},
}

var internalMapping = kindMapping{http.StatusInternalServerError, "internal_error"}

func mappingFor(kind errx.Kind) kindMapping {
	if m, ok := kindMappings[kind]; ok {
		return m
	}
	return internalMapping
}

// ErrorKindToStatus maps errx.Kind to HTTP status codes. Unknown and
// Internal both become 500.
func ErrorKindToStatus(kind errx.Kind) int {
	return mappingFor(kind).status
}

// ErrorKindToCode maps errx.Kind to the error code of JSON error responses.
func ErrorKindToCode(kind errx.Kind) string {
	return mappingFor(kind).code
}

// RetryAfterSeconds is sent with responses for retryable errors.
const RetryAfterSeconds = "1"

// WriteKindError writes err as a JSON error response whose status and code
// follow its kind. An empty message falls back to err's text.
func WriteKindError(w http.ResponseWriter, err error, message string) {
	kind := errx.KindOf(err)
	m := mappingFor(kind)
	if message == "" {
		message = err.Error()
	}
	if kind.Retryable() {
		w.Header().Set("Retry-After", RetryAfterSeconds)
	}
	WriteError(w, m.status, m.code, message, nil)
}
