package token

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the token service.
	ErrConnectionFailed = errors.New("token: connection failed")

	// ErrInvalidResponse indicates the service returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("token: invalid response")

	// ErrGateway indicates the gateway answered with a JSON-RPC error object.
	ErrGateway = errors.New("token: gateway error")

	// ErrInsufficientBalance indicates an owner holds fewer tokens than required.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrDNSLookupFailed indicates a DNS lookup for the service endpoint failed.
	ErrDNSLookupFailed = errors.New("token: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("token: DNSSEC validation failed")

	// ErrNoEndpoints indicates no SRV records were published for the domain.
	ErrNoEndpoints = errors.New("token: no endpoints found")
)
