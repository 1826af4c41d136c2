package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const defaultGuestTokenTTL = 30 * 24 * time.Hour

// GuestTokenService generates and validates stateless HMAC-SHA256 tokens for
// guest order access. Tokens are embedded in order confirmation links so a
// customer can check cancellation and return state without an account.
type GuestTokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewGuestTokenService creates a token service bound to the given signing
// secret and token lifetime. An empty secret falls back to an insecure
// development default.
func NewGuestTokenService(secret string, ttl time.Duration) *GuestTokenService {
	if secret == "" {
		secret = "default-guest-order-token-secret-change-me"
		fmt.Println("WARNING: guest token secret not set, using insecure default")
	}
	if ttl <= 0 {
		ttl = defaultGuestTokenTTL
	}
	return &GuestTokenService{secret: []byte(secret), ttl: ttl}
}

// GenerateToken produces a base64url-encoded token: expiry_unix|HMAC-SHA256(orderID|orderNumber|expiry, secret)
func (s *GuestTokenService) GenerateToken(orderID, orderNumber string) string {
	expiry := time.Now().Add(s.ttl).Unix()
	expiryStr := strconv.FormatInt(expiry, 10)

	mac := s.computeHMAC(orderID, orderNumber, expiryStr)

	payload := expiryStr + "|" + base64.RawURLEncoding.EncodeToString(mac)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ValidateToken decodes the token, checks expiry, recomputes HMAC, and performs constant-time comparison.
func (s *GuestTokenService) ValidateToken(token, orderID, orderNumber string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return fmt.Errorf("invalid token")
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid token")
	}

	expiryStr := parts[0]
	providedMAC, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("invalid token")
	}

	// Check expiry
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token")
	}
	if time.Now().Unix() > expiry {
		return fmt.Errorf("token expired")
	}

	// Recompute and constant-time compare
	expectedMAC := s.computeHMAC(orderID, orderNumber, expiryStr)
	if subtle.ConstantTimeCompare(providedMAC, expectedMAC) != 1 {
		return fmt.Errorf("invalid token")
	}

	return nil
}

func (s *GuestTokenService) computeHMAC(orderID, orderNumber, expiry string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(orderID + "|" + orderNumber + "|" + expiry))
	return h.Sum(nil)
}
