package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingImage       = errors.New("please upload or capture an image of your shelf first")
	ErrMissingPlayerCount = errors.New("please select the number of players")
	ErrMissingPlayingTime = errors.New("please select a playing time")

	// ErrSuperseded is returned by a run that a newer run cancelled.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// Category names the step a failure happened in.
type Category string

const (
	CategoryUpload         Category = "upload validation"
	CategoryIdentify       Category = "identification"
	CategoryRecommendation Category = "recommendation fetch"
	CategoryStream         Category = "stream parsing"
)

// Error tags a failure with its category.
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Category) + " failed"
	}
	return string(e.Category) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPError is a non-OK response from the recommendation server.
type HTTPError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// UserMessage renders err for display. Categorised errors keep their
// message; anything else is reported as unknown.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if !errors.As(err, &ce) {
		return "An unknown error occurred. Please try again."
	}
	label := string(ce.Category)
	label = strings.ToUpper(label[:1]) + label[1:]
	if ce.Err == nil {
		return fmt.Sprintf("%s failed for an unknown reason. Please try again.", label)
	}
	return fmt.Sprintf("%s error: %s", label, ce.Err.Error())
}
