package auth

// Kind classifies every error the auth flow returns to its caller.
// Expired is distinct from Invalid so the HTTP layer can offer a
// "resend" action instead of a plain retry.
type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindNotFound
	KindInvalid
	KindExpired
)

// Error is the only error type that crosses the auth service boundary.
// Message is always safe to show to the end user; the underlying cause
// is logged inside the service and never attached here.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func conflict(field, message string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: message}
}

func notFound(field, message string) *Error {
	return &Error{Kind: KindNotFound, Field: field, Message: message}
}

func invalid(field, message string) *Error {
	return &Error{Kind: KindInvalid, Field: field, Message: message}
}

func expired(field, message string) *Error {
	return &Error{Kind: KindExpired, Field: field, Message: message}
}

func internal() *Error {
	return &Error{Kind: KindInternal, Message: "something went wrong, please try again"}
}

// ErrEmailNotConfirmed is returned by Login for accounts that have not
// proven email ownership yet. It is a distinct value so the HTTP layer
// can answer 403 instead of 400.
var ErrEmailNotConfirmed = &Error{Kind: KindInvalid, Field: "email", Message: "email not confirmed"}

// errInvalidCredentials deliberately carries the same message for an
// unknown email and a wrong password, so responses cannot be used to
// enumerate accounts.
func errInvalidCredentials() *Error {
	return &Error{Kind: KindInvalid, Message: "invalid email or password"}
}
