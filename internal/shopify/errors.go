package shopify

import (
	"fmt"
	"strings"
)

// GraphQLError is a top-level error returned alongside (or instead of) data.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

// GraphQLErrors is the full top-level errors array.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	if len(e) == 0 {
		return "graphql error"
	}
	msgs := make([]string, len(e))
	for i, ge := range e {
		msgs[i] = ge.Message
	}
	return fmt.Sprintf("graphql: %s", strings.Join(msgs, "; "))
}

// throttledErrors reports whether the errors array signals rate limiting.
func throttledErrors(errs []GraphQLError) bool {
	for _, e := range errs {
		switch e.Extensions.Code {
		case "THROTTLED", "MAX_COST_EXCEEDED":
			return true
		}
	}
	return false
}

// ThrottleError is returned when a request stayed throttled through every
// retry attempt.
type ThrottleError struct {
	Attempts int
	Last     error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("still throttled after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ThrottleError) Unwrap() error { return e.Last }

// UserError is a semantic mutation failure reported inside the data payload.
// These are terminal for the record that triggered them and never retried.
type UserError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrors is the userErrors array of a mutation payload.
type UserErrors []UserError

// Err returns nil when the array is empty, the array itself otherwise.
// Mutation callers end with `return resp.Thing.UserErrors.Err()`.
func (e UserErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e UserErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ue := range e {
		if len(ue.Field) > 0 {
			msgs[i] = fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message)
		} else {
			msgs[i] = ue.Message
		}
	}
	return strings.Join(msgs, "; ")
}
