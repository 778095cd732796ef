package airtable

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrNotFound matches any *APIError with status 404.
var ErrNotFound = errors.New("airtable: not found")

// ErrTooManyRecords is returned when a create call exceeds MaxRecordsPerRequest.
var ErrTooManyRecords = fmt.Errorf("airtable: more than %d records in one request", MaxRecordsPerRequest)

// APIError is a non-2xx response from Airtable.
type APIError struct {
	Op      string
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("airtable: %s: %d %s: %s", e.Op, e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("airtable: %s: %d %s", e.Op, e.Status, e.Type)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// parseAPIError reads Airtable's error envelope. Two forms exist:
// {"error": {"type": "...", "message": "..."}} and {"error": "NOT_FOUND"}.
func parseAPIError(op string, status int, body []byte) *APIError {
	apiErr := &APIError{Op: op, Status: status}

	res := gjson.GetBytes(body, "error")
	switch {
	case res.IsObject():
		apiErr.Type = res.Get("type").String()
		apiErr.Message = res.Get("message").String()
	case res.Exists():
		apiErr.Type = res.String()
	}

	if apiErr.Type == "" {
		apiErr.Type = http.StatusText(status)
		if len(body) > 0 && !gjson.ValidBytes(body) {
			apiErr.Message = truncate(string(body), 200)
		}
	}
	return apiErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
