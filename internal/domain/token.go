package domain

// TokenPair is what login, signup and refresh hand back to the client: a
// short-lived access token and a long-lived refresh token, both signed.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Identity is the result of authenticating a request: the resolved user,
// the keystore entry backing the presented token, and the raw access token
// itself. It is built once per request and threaded through the call chain
// as an immutable value.
type Identity struct {
	User        User
	Keystore    KeystoreEntry
	AccessToken string
}
