package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aq2208/gorder-pickup/configs"
)

// MinSecretBytes is the shortest pickup signing secret accepted.
const MinSecretBytes = 32

var ErrWeakSecret = errors.New("pickup secret too short")

// KeyMaterial holds the shared secrets used by the service.
type KeyMaterial struct {
	PickupSecret []byte
	JWTSecret    []byte
}

func LoadKeyMaterial(c configs.Config) (KeyMaterial, error) {
	secret, err := decodeSecret(c.Pickup.SecretB64)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("decode pickup.secret_b64url: %w", err)
	}
	if len(secret) < MinSecretBytes {
		return KeyMaterial{}, fmt.Errorf("%w: need %d bytes, got %d", ErrWeakSecret, MinSecretBytes, len(secret))
	}
	if c.Security.JWTSecret == "" {
		return KeyMaterial{}, errors.New("security.jwt_secret required")
	}
	return KeyMaterial{
		PickupSecret: secret,
		JWTSecret:    []byte(c.Security.JWTSecret),
	}, nil
}

// decodeSecret accepts base64url with or without padding.
func decodeSecret(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, errors.New("empty secret")
	}
	return base64.RawURLEncoding.DecodeString(s)
}
