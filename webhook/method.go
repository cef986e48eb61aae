package webhook

import (
	"fmt"
	"strings"
)

/* Method is the HTTP verb used to deliver a rendered body
 * Only body-bearing verbs are deliverable; GET is parsed so it can be rejected explicitly
 */
type Method int

const (
	POST Method = iota + 1
	PUT
	PATCH
	GET
)

// String returns the HTTP verb
func (m Method) String() string {
	switch m {
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case PATCH:
		return "PATCH"
	case GET:
		return "GET"
	default:
		return "UNKNOWN"
	}
}

// NewMethod creates a Method from a string, case-insensitively
func NewMethod(s string) Method {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "POST":
		return POST
	case "PUT":
		return PUT
	case "PATCH":
		return PATCH
	case "GET":
		return GET
	default:
		return 0
	}
}

// Validate checks if the method can carry a templated body
func (m Method) Validate() error {
	switch m {
	case POST, PUT, PATCH:
		return nil
	case GET:
		return fmt.Errorf("GET is not supported for body delivery")
	default:
		return fmt.Errorf("must be one of POST, PUT, PATCH")
	}
}

// HasBody reports whether requests with this method carry the rendered body
func (m Method) HasBody() bool {
	return m != GET
}

// MarshalText encodes the method as its verb
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a verb; unknown verbs decode to the zero Method and fail Validate
func (m *Method) UnmarshalText(text []byte) error {
	*m = NewMethod(string(text))
	return nil
}
