package gstengine

import "strings"

// ErrorCategory represents the classification of GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryResource indicates the media could not be opened or read (missing file, permissions)
	ErrCategoryResource ErrorCategory = iota
	// ErrCategoryCodec indicates decode or format failures (missing plugin, negotiation)
	ErrCategoryCodec
	// ErrCategoryNetwork indicates network-related failures (connection, timeout, DNS)
	ErrCategoryNetwork
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryResource:
		return "resource"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error is an error message popped from a pipeline bus.
type Error struct {
	Message  string
	Debug    string
	Category ErrorCategory
}

func (e *Error) Error() string {
	return "gstreamer [" + e.Category.String() + "]: " + e.Message
}

// Classify categorizes a GStreamer error from its message and debug string.
//
// go-gst's GError does not expose the error domain, so classification relies
// on keyword matching. Resource is checked first since "not found" also shows
// up in network errors for HTTP sources.
func Classify(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

var (
	resourceKeywords = []string{
		"could not open",
		"no such file",
		"resource not found",
		"permission denied",
		"could not read",
		"filesrc",
	}

	codecKeywords = []string{
		"codec",
		"decode",
		"demux",
		"not negotiated",
		"no decoder",
		"missing plugin",
		"could not determine type",
		"format",
	}

	networkKeywords = []string{
		"connection",
		"timeout",
		"timed out",
		"unreachable",
		"network",
		"dns",
		"resolve",
		"socket",
		"http",
		"souphttpsrc",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
