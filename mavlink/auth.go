package mavlink

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// AuthSize is length of authentication trailer, truncated HMAC-SHA256 of the frame.
const AuthSize = 8

// AuthMinSecret is minimal shared secret length.
const AuthMinSecret = 8

var ErrAuthSecretWeak = fmt.Errorf("secret must be >= %d bytes", AuthMinSecret)

func authSum(frame, secret []byte) ([]byte, error) {
	if len(secret) < AuthMinSecret {
		return nil, ErrAuthSecretWeak
	}
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write(frame) // hash.Hash never returns error
	return h.Sum(nil)[:AuthSize], nil
}

// AppendAuth appends authentication trailer of frame to frame.
func AppendAuth(frame, secret []byte) ([]byte, error) {
	sum, err := authSum(frame, secret)
	if err != nil {
		return nil, err
	}
	return append(frame, sum...), nil
}

// CheckAuth reports whether trailer authenticates frame.
func CheckAuth(frame, trailer, secret []byte) bool {
	sum, err := authSum(frame, secret)
	return err == nil && hmac.Equal(sum, trailer)
}
