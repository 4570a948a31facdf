package auth

import "github.com/pkg/errors"

var (
	// ErrAuthenticationFailed is returned for an unknown phone, a wrong password and a deactivated account alike.
	ErrAuthenticationFailed = errors.New("phone number or password is incorrect")

	ErrTokenInvalid     = errors.New("token is invalid or expired")
	ErrTokenBlacklisted = errors.New("token is blacklisted")

	ErrOTPInvalid     = errors.New("invalid or expired OTP")
	ErrOTPNotVerified = errors.New("OTP not verified")
)

// IsTokenError reports whether err is caused by a bad token presented by the client.
func IsTokenError(err error) bool {
	switch errors.Cause(err) {
	case ErrTokenInvalid, ErrTokenBlacklisted:
		return true
	}
	return false
}
