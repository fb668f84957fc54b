package models

// Principal is an authenticated caller resolved from a bearer token.
// It lives for one request only.
type Principal struct {
	ID    string
	Email string
}
