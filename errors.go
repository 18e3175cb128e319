package urconf

import "fmt"

// ValidationError reports a required field that is missing or a value that
// cannot be coerced to the field's declared type. It is returned at
// declaration time and when a fetched record cannot be turned into an entity.
type ValidationError struct {
	Kind   string // "contact" or "monitor"
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: field %q: %s", e.Kind, e.Field, e.Reason)
}

// DuplicateIdentityError is returned when two declared entities of the same
// kind share an identity (contact value or monitor friendly name).
type DuplicateIdentityError struct {
	Kind     string
	Identity string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("duplicate %s: %q", e.Kind, e.Identity)
}

// AssociationError is returned when an invalid contact handle is added to a
// monitor's contact list.
type AssociationError struct {
	Monitor string
	Reason  string
}

func (e *AssociationError) Error() string {
	return fmt.Sprintf("monitor %q: %s", e.Monitor, e.Reason)
}

// APIError is returned when an Uptime Robot API call fails: a non-200 HTTP
// status, a response body that is not valid JSON, or a response whose "stat"
// field indicates an application-level error.
type APIError struct {
	Method  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("uptimerobot %s: %s", e.Method, e.Message)
}
