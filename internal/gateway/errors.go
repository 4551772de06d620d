package gateway

import "strings"

// graphPrefix is how machinebox/graphql surfaces backend-reported errors.
const graphPrefix = "graphql: "

// Message extracts the most specific human-readable message from err:
// a backend-reported GraphQL error message first, the transport error's own
// message next, fallback last.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, graphPrefix); ok && rest != "" {
		return rest
	}
	if msg != "" {
		return msg
	}
	return fallback
}

// IsBackendError reports whether err carries a backend-reported GraphQL error
// rather than a transport/decode failure.
func IsBackendError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), graphPrefix)
}
