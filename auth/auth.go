// Package auth is the boundary with the external identity provider.
// The core only ever sees an Identity; session issuance and token
// verification live outside this module.
package auth

import "fmt"

// Identity is what the provider supplies per signed-in session. The
// client treats these as opaque inputs to get-or-create user resolution.
type Identity struct {
	Email  string
	Name   string
	Avatar string
}

// Provider resolves the identity of the current session.
type Provider interface {
	Identity() (Identity, error)
}

// Validate fills derivable fields and rejects an unusable identity.
// Name falls back to the email local part, avatar to a generated one,
// matching what the web frontend does with provider profiles.
func (id Identity) Validate() (Identity, error) {
	if id.Email == "" {
		return Identity{}, fmt.Errorf("auth: identity without email")
	}
	if id.Name == "" {
		id.Name = localPart(id.Email)
	}
	if id.Avatar == "" {
		id.Avatar = "https://api.dicebear.com/7.x/notionists/svg?seed=" + id.Email
	}
	return id, nil
}

func localPart(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
