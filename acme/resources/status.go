package resources

// Status is the lifecycle status of an ACME Order, Authorization or
// Challenge resource as reported by the server.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.6
type Status string

const (
	StatusPending     Status = "pending"
	StatusReady       Status = "ready"
	StatusProcessing  Status = "processing"
	StatusValid       Status = "valid"
	StatusInvalid     Status = "invalid"
	StatusDeactivated Status = "deactivated"
	StatusExpired     Status = "expired"
	StatusRevoked     Status = "revoked"
)

// Known reports whether the status is one of the values enumerated by RFC
// 8555. Anything else in a server response is a protocol error.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusReady, StatusProcessing, StatusValid,
		StatusInvalid, StatusDeactivated, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// Terminal reports whether the status is one a resource can never leave.
func (s Status) Terminal() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusDeactivated, StatusExpired,
		StatusRevoked:
		return true
	}
	return false
}
