package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is deliberately vague: the sign-in flow never
	// reveals whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// VerificationError means the provider's capture response did not match what
// was stored at payment creation. Settlement is never attempted on one.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("payment verification failed: %s", e.Reason)
}

// IsVerificationError unwraps err into a VerificationError if it is one.
func IsVerificationError(err error) (*VerificationError, bool) {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
