package resources

import "fmt"

// Problem is an RFC 7807 problem document returned by the server alongside
// an HTTP error status.
//
// See https://tools.ietf.org/html/rfc8555#section-6.7
type Problem struct {
	Type   string `json:"type,omitempty"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status,omitempty"`
}

// Error makes a Problem usable as a Go error so ACME-level failures can be
// distinguished from transport failures with errors.As.
func (p *Problem) Error() string {
	return fmt.Sprintf("acme problem %q (status %d): %s", p.Type, p.Status, p.Detail)
}
