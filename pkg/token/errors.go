package token

// Kind identifies why token verification failed. Each kind maps to a
// distinct, user-safe log message; all of them surface as 401 upstream.
type Kind int

const (
	// Malformed means the token is not structurally a JWT.
	Malformed Kind = iota

	// BadSignature means the signature does not match the signing key.
	BadSignature

	// Expired means the token's expiry has passed.
	Expired

	// Unsupported means the token uses an algorithm or shape the codec
	// does not accept.
	Unsupported
)

// String returns the log-safe name of the kind.
func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case BadSignature:
		return "bad_signature"
	case Expired:
		return "expired"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a typed token verification failure.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return "invalid token: " + e.Kind.String()
}

// Unwrap exposes the underlying library error for logging.
func (e *Error) Unwrap() error { return e.cause }
