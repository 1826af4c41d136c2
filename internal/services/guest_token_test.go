package services

import (
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGuestToken_RoundTrip(t *testing.T) {
	service := NewGuestTokenService("test-signing-secret", time.Hour)

	token := service.GenerateToken("order-id-1", "ORD-1700000000")

	err := service.ValidateToken(token, "order-id-1", "ORD-1700000000")
	assert.NoError(t, err)
}

func TestGuestToken_RejectsWrongOrder(t *testing.T) {
	service := NewGuestTokenService("test-signing-secret", time.Hour)

	token := service.GenerateToken("order-id-1", "ORD-1700000000")

	// Token is bound to both the order ID and the order number
	assert.Error(t, service.ValidateToken(token, "order-id-2", "ORD-1700000000"))
	assert.Error(t, service.ValidateToken(token, "order-id-1", "ORD-1700000001"))
}

func TestGuestToken_RejectsMalformed(t *testing.T) {
	service := NewGuestTokenService("test-signing-secret", time.Hour)

	assert.Error(t, service.ValidateToken("not-a-token", "order-id-1", "ORD-1700000000"))
	assert.Error(t, service.ValidateToken("", "order-id-1", "ORD-1700000000"))

	// Valid base64 but missing the separator
	garbage := base64.RawURLEncoding.EncodeToString([]byte("no-separator-here"))
	assert.Error(t, service.ValidateToken(garbage, "order-id-1", "ORD-1700000000"))
}

func TestGuestToken_RejectsExpired(t *testing.T) {
	service := NewGuestTokenService("test-signing-secret", time.Hour)

	// Forge a token with an expiry in the past signed with the real secret
	expiry := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	mac := service.computeHMAC("order-id-1", "ORD-1700000000", expiry)
	payload := expiry + "|" + base64.RawURLEncoding.EncodeToString(mac)
	token := base64.RawURLEncoding.EncodeToString([]byte(payload))

	err := service.ValidateToken(token, "order-id-1", "ORD-1700000000")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestGuestToken_RejectsTamperedExpiry(t *testing.T) {
	service := NewGuestTokenService("test-signing-secret", time.Hour)

	// Extending the expiry without re-signing invalidates the MAC
	expiry := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
	mac := service.computeHMAC("order-id-1", "ORD-1700000000", expiry)
	forgedExpiry := strconv.FormatInt(time.Now().Add(100*time.Hour).Unix(), 10)
	payload := forgedExpiry + "|" + base64.RawURLEncoding.EncodeToString(mac)
	token := base64.RawURLEncoding.EncodeToString([]byte(payload))

	assert.Error(t, service.ValidateToken(token, "order-id-1", "ORD-1700000000"))
}
