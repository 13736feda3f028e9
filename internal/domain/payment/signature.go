package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns hex(HMAC-SHA256(secret, intentID + "|" + paymentID)).
func Sign(secret, intentID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(secret string, p Proof) bool {
	if p.IntentID == "" || p.PaymentID == "" || p.Signature == "" {
		return false
	}
	expected := Sign(secret, p.IntentID, p.PaymentID)
	return hmac.Equal([]byte(expected), []byte(p.Signature))
}
