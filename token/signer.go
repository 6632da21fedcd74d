package token

import (
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer is an interface for signing and verifying JWT tokens
type Signer interface {
	// Sign creates a signed JWT token from claims
	Sign(claims jwt.Claims) (string, error)

	// GetVerificationKey returns the key used to verify the token's signature
	GetVerificationKey(token *jwt.Token) (any, error)

	// GetSigningMethod returns the JWT signing method used
	GetSigningMethod() jwt.SigningMethod
}

var (
	_ Signer = (*HMACSigner)(nil)
	_ Signer = (*KeyRing)(nil)
)

// HMACSigner implements Signer using a single symmetric HMAC-SHA256 secret
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner creates a new HMAC signer with the given secret
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{
		secret: []byte(secret),
	}
}

func (h *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signedToken, nil
}

func (h *HMACSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// KeyRing implements Signer over a set of HMAC secrets addressed by key ID.
// Tokens are signed with the active key and carry its ID in the "kid" header;
// any key still on the ring verifies, so secrets can be rotated without
// invalidating tokens that have not yet expired.
type KeyRing struct {
	mu       sync.RWMutex
	activeID string
	keys     map[string][]byte
}

// NewKeyRing creates a key ring whose active signing key is secret, identified by keyID
func NewKeyRing(keyID, secret string) *KeyRing {
	return &KeyRing{
		activeID: keyID,
		keys:     map[string][]byte{keyID: []byte(secret)},
	}
}

// AddVerificationKey keeps a previous secret available for verification only
func (k *KeyRing) AddVerificationKey(keyID, secret string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[keyID] = []byte(secret)
}

// Rotate makes secret the active signing key. The previous key stays on the ring.
func (k *KeyRing) Rotate(keyID, secret string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[keyID] = []byte(secret)
	k.activeID = keyID
}

// Retire drops a key from the ring. Tokens signed with it stop verifying.
// The active key cannot be retired.
func (k *KeyRing) Retire(keyID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if keyID == k.activeID {
		return errors.Errorf("cannot retire active key %q", keyID)
	}
	delete(k.keys, keyID)
	return nil
}

// ActiveKeyID returns the ID of the key currently used for signing
func (k *KeyRing) ActiveKeyID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.activeID
}

func (k *KeyRing) Sign(claims jwt.Claims) (string, error) {
	k.mu.RLock()
	keyID := k.activeID
	secret := k.keys[keyID]
	k.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = keyID

	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with key ring")
	}
	return signedToken, nil
}

func (k *KeyRing) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	keyID, _ := token.Header["kid"].(string)

	k.mu.RLock()
	defer k.mu.RUnlock()
	secret, ok := k.keys[keyID]
	if !ok {
		return nil, errors.Errorf("unknown key id %q", keyID)
	}
	return secret, nil
}

func (k *KeyRing) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
