// Package payment verifies signed payment-completion assertions and talks
// to the payment gateway.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/iliyamo/resource-rental/internal/apperr"
)

// Assertion is a gateway's claim that a payment succeeded.  It is verified
// once and never stored as such.
type Assertion struct {
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	Signature     string `json:"signature"`
	ReservationID uint64 `json:"reservation_id"`
}

// Gate checks assertions against a secret shared with the gateway.
type Gate struct {
	secret []byte
}

// NewGate returns a Gate for secret.  An empty secret is a configuration
// error and panics, matching how the service handles missing dependencies.
func NewGate(secret string) *Gate {
	if secret == "" {
		panic("payment: empty shared secret")
	}
	return &Gate{secret: []byte(secret)}
}

// Sign returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func (g *Gate) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time.
func (g *Gate) Verify(orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return apperr.Validation("order_id, payment_id and signature are required")
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return apperr.ErrSignatureMismatch
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	if !hmac.Equal(mac.Sum(nil), got) {
		return apperr.ErrSignatureMismatch
	}
	return nil
}

// VerifyAssertion is Verify over an Assertion.
func (g *Gate) VerifyAssertion(a Assertion) error {
	return g.Verify(a.OrderID, a.PaymentID, a.Signature)
}
