// File: internal/campus/auth/errors.go
package auth

import "errors"

// Typed protocol errors. Network-layer failures (connection errors, malformed
// JSON) propagate undecorated; these mark violations of the expected protocol
// shape.
var (
	// ErrInstitutionNotFound reports that the directory holds no entry with
	// the requested name.
	ErrInstitutionNotFound = errors.New("auth: institution not found in directory")

	// ErrUnsupportedPortal reports that neither candidate portal URL carries
	// a recognized marker; this client cannot speak to that institution.
	ErrUnsupportedPortal = errors.New("auth: unsupported portal type")

	// ErrLoginFormNotFound reports that the CAS page did not contain the
	// expected login form.
	ErrLoginFormNotFound = errors.New("auth: cas login form not found in page")

	// ErrNotResolved reports a login attempt before institution resolution.
	ErrNotResolved = errors.New("auth: institution not resolved")
)
