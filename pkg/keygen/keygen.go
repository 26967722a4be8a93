package keygen

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const alphaNumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SessionID generates a chat session document id
func SessionID() string {
	return uuid.New().String()
}

// MessageID generates the client-side identity of a chat message.
// It doubles as the key of any audio recorded for the message.
func MessageID() string {
	return uuid.New().String()
}

// TradeID generates a trade log document id
func TradeID() string {
	return uuid.New().String()
}

// UserID generates an anonymous user id
func UserID() string {
	return uuid.New().String()
}

// IdempotencyKey generates the key sent with one logical backend request.
// Retries of that request reuse it.
func IdempotencyKey() string {
	return uuid.New().String()
}

// PendingID generates the id of an in-flight analysis request.
// Format: pending-<12 alphanumeric chars>
func PendingID() (string, error) {
	suffix, err := randomString(12, alphaNumeric)
	if err != nil {
		return "", err
	}
	return "pending-" + suffix, nil
}

// randomString generates a random string of given length from the given charset
func randomString(length int, charset string) (string, error) {
	result := make([]byte, length)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}

	return string(result), nil
}
