package transport

import (
	"encoding/base64"

	"golang.org/x/text/encoding/charmap"
)

// AuthCredentials are server-issued fallback credentials, returned for
// example inside a registration-lock failure.
type AuthCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *AuthCredentials) AsBasic() string {
	usernameAndPassword := a.Username + ":" + a.Password
	dec := charmap.Windows1250.NewDecoder()
	out, _ := dec.String(usernameAndPassword)
	encoded := base64.StdEncoding.EncodeToString([]byte(out))
	return "Basic " + encoded
}
