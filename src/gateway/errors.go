package gateway

import "fmt"

// TransportError is a non-success HTTP response from the upstream API. It is
// terminal for the call; the gateway never retries.
type TransportError struct {
	Operation string
	Status    int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gto api %s: status %d", e.Operation, e.Status)
}

// MalformedResponseError is a response body that is not parseable JSON,
// typically an HTML error page served in place of the API. Preview holds a
// truncated, tag-stripped excerpt of the body.
type MalformedResponseError struct {
	Operation string
	Preview   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("gto api %s: non-JSON response: %s", e.Operation, e.Preview)
}
