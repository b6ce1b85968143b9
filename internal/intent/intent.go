// Package intent classifies natural-language input into secret-browsing
// intents using an LLM provider. Classification is stateless per turn.
package intent

import "fmt"

// Intent is a recognized user intention.
type Intent string

const (
	IntentListSecrets   Intent = "list_secrets"
	IntentGetSecret     Intent = "get_secret"
	IntentCountByType   Intent = "count_by_type"
	IntentSearchSecrets Intent = "search_secrets"
	IntentUnknown       Intent = "unknown"
)

// Valid reports whether the intent is one of the recognized values.
func (i Intent) Valid() bool {
	switch i {
	case IntentListSecrets, IntentGetSecret, IntentCountByType, IntentSearchSecrets, IntentUnknown:
		return true
	}
	return false
}

// Classification is the result of classifying one user message.
// Params carry intent-specific extracted arguments:
//
//	get_secret:     "path"
//	search_secrets: "path_prefix", "type_filter" (both optional)
type Classification struct {
	Intent Intent
	Params map[string]string
}

// Param returns the named parameter or "" when absent.
func (c *Classification) Param(name string) string {
	if c == nil || c.Params == nil {
		return ""
	}
	return c.Params[name]
}

// ClassificationError indicates the classifier itself failed: the provider
// was unreachable or errored. It is distinct from an unknown intent, which
// is a successful classification of an unrecognized request.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("intent classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
