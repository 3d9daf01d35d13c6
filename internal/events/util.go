package events

import "fmt"

// isHTTPErrorRecoverable reports whether a delivery attempt should be
// retried: 400, client timeouts (408), rate limiting (429), and server
// errors are; everything else (notably 401/403) is not.
func isHTTPErrorRecoverable(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		return statusCode == 400 || statusCode == 408 || statusCode == 429
	}
	return statusCode >= 500
}

func httpErrorMessage(statusCode int, context string, retryMessage string) string {
	desc := fmt.Sprintf("HTTP error %d", statusCode)
	if statusCode == 401 || statusCode == 403 {
		desc += " (invalid SDK key)"
	}
	msg := fmt.Sprintf("Received %s for %s", desc, context)
	if retryMessage != "" {
		msg += " - " + retryMessage
	}
	return msg
}
