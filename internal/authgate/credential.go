package authgate

import "net/http"

// Credential is the opaque session cookie value. The gate only checks that one
// is present; whether it names a live session is decided downstream.
type Credential struct {
	value string
}

func (c Credential) Value() string {
	return c.value
}

// CredentialFrom reads the named cookie. A missing, empty or unparsable cookie
// all mean "no credential".
func CredentialFrom(r *http.Request, cookieName string) (Credential, bool) {
	if r == nil || cookieName == "" {
		return Credential{}, false
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return Credential{}, false
	}
	return Credential{value: cookie.Value}, true
}
