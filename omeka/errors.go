package omeka

import (
	"fmt"

	"github.com/teranos/omekalink/errors"
)

// maxBodyExcerpt bounds the response body kept on a StatusError
const maxBodyExcerpt = 512

// StatusError is returned for any non-success HTTP response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string // excerpt of the response body
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// newStatusError builds a StatusError marked with the matching errors sentinel
func newStatusError(method, url string, status int, body []byte) error {
	excerpt := string(body)
	if len(excerpt) > maxBodyExcerpt {
		excerpt = excerpt[:maxBodyExcerpt] + "..."
	}
	var err error = &StatusError{Method: method, URL: url, StatusCode: status, Body: excerpt}
	if sentinel := errors.ForStatus(status); sentinel != nil {
		err = errors.Mark(err, sentinel)
	}
	return err
}

// IsNotFound reports whether err is a 404 from Omeka S
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == 404 {
		return true
	}
	return errors.IsNotFoundError(err)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
