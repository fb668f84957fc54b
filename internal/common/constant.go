package common

// AuthorizationHeaderName carries the bearer token on every protected request.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the scheme expected in the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName is echoed back on every response.
const RequestIDHeaderName = "X-Request-Id"
