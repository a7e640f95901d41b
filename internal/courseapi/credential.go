// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package courseapi

import "strings"

const (
	SchemeToken  = "Token"
	SchemeBearer = "Bearer"
)

// Credential is passed explicitly with every request; the client keeps no
// process-wide auth state, so sessions with different viewers can share it.
type Credential struct {
	Scheme string
	Token  string
}

// TokenCredential returns a credential using the platform's "Token" scheme.
func TokenCredential(token string) Credential {
	return Credential{Scheme: SchemeToken, Token: token}
}

// Valid reports whether the credential carries a token.
func (c Credential) Valid() bool {
	return strings.TrimSpace(c.Token) != ""
}

// Header renders the Authorization header value.
func (c Credential) Header() string {
	return c.scheme() + " " + strings.TrimSpace(c.Token)
}

// String never reveals the token.
func (c Credential) String() string {
	if !c.Valid() {
		return "<none>"
	}
	return c.scheme() + " <redacted>"
}

func (c Credential) scheme() string {
	if c.Scheme == "" {
		return SchemeToken
	}
	return c.Scheme
}
