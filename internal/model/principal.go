package model

// PrincipalKind distinguishes who is acting on the engine.
type PrincipalKind string

const (
	PrincipalStudent PrincipalKind = "student"
	PrincipalAdmin   PrincipalKind = "admin"
	// PrincipalSystem is used by the reconciler when no interactive user is involved.
	PrincipalSystem PrincipalKind = "system"
)

// Principal is an externally verified identity. The engine never derives it
// from request fields.
type Principal struct {
	ID   int           `json:"id"`
	Kind PrincipalKind `json:"kind"`
}

// SystemPrincipal returns the identity used for timer-driven operations.
func SystemPrincipal() Principal {
	return Principal{Kind: PrincipalSystem}
}
