package jwt

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the algorithm used for both token kinds.
type SigningMethod string

const (
	// MethodHS256 signs with an HMAC-SHA256 secret per token kind.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key per token kind.
	MethodEd25519 SigningMethod = "ed25519"
)

// Kind is carried in the "typ" claim so that a refresh token can never be
// presented where an access token is expected, and vice versa.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// KeyConfig holds the key material for one token kind. For HS256 the
// PrivateKey is the shared secret and PublicKey is ignored. For Ed25519 the
// PrivateKey may be raw or PEM encoded; PublicKey is derived from it when
// omitted.
type KeyConfig struct {
	PrivateKey []byte
	PublicKey  []byte
	KeyID      string
}

// Config configures an Issuer.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	Access        KeyConfig
	Refresh       KeyConfig
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

// Payload is the identity embedded into a freshly issued pair.
type Payload struct {
	UserID string
	Role   string
}

// Claims are the verified contents of an access or refresh token.
type Claims struct {
	Role string `json:"role,omitempty"`
	Type Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// Pair is the result of a successful issuance.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type signer struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	keyID     string
	ttl       time.Duration
	kind      Kind
}

// Issuer signs and verifies access and refresh tokens with distinct keys.
// It is safe for concurrent use.
type Issuer struct {
	config  Config
	access  signer
	refresh signer
}

// NewIssuer validates cfg and prepares the signing keys.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	access, err := newSigner(cfg.SigningMethod, cfg.Access, cfg.AccessTTL, KindAccess)
	if err != nil {
		return nil, fmt.Errorf("access key: %w", err)
	}
	refresh, err := newSigner(cfg.SigningMethod, cfg.Refresh, cfg.RefreshTTL, KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("refresh key: %w", err)
	}
	if bytes.Equal(cfg.Access.PrivateKey, cfg.Refresh.PrivateKey) {
		return nil, errors.New("access and refresh tokens must use distinct keys")
	}

	return &Issuer{config: cfg, access: access, refresh: refresh}, nil
}

func newSigner(method SigningMethod, keys KeyConfig, ttl time.Duration, kind Kind) (signer, error) {
	s := signer{keyID: strings.TrimSpace(keys.KeyID), ttl: ttl, kind: kind}
	switch method {
	case MethodHS256:
		if len(keys.PrivateKey) < 32 {
			return signer{}, errors.New("hs256 secret must be at least 32 bytes")
		}
		s.method = jwt.SigningMethodHS256
		s.signKey = keys.PrivateKey
		s.verifyKey = keys.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(keys.PrivateKey)
		if err != nil {
			return signer{}, err
		}
		pub := priv.Public().(ed25519.PublicKey)
		if len(keys.PublicKey) > 0 {
			configured, err := parseEdPublicKey(keys.PublicKey)
			if err != nil {
				return signer{}, err
			}
			if !configured.Equal(pub) {
				return signer{}, errors.New("ed25519 public key does not match private key")
			}
		}
		s.method = jwt.SigningMethodEdDSA
		s.signKey = priv
		s.verifyKey = pub
	default:
		return signer{}, errors.New("unsupported signing method")
	}
	return s, nil
}

// AccessTTL reports the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.config.AccessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.config.RefreshTTL }

// Issue signs a new access/refresh pair for p. Each token gets its own jti.
func (i *Issuer) Issue(p Payload) (Pair, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return Pair{}, errors.New("payload requires a user id")
	}
	now := time.Now()

	access, accessExp, err := i.sign(i.access, p, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := i.sign(i.refresh, p, now)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(s signer, p Payload, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.ttl)
	claims := Claims{
		Type: s.kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	if s.kind == KindAccess {
		claims.Role = p.Role
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	token := jwt.NewWithClaims(s.method, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	signed, err := token.SignedString(s.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess reports whether token is a valid, unexpired access token.
// Any failure yields (nil, false).
func (i *Issuer) VerifyAccess(token string) (*Claims, bool) {
	claims, err := i.ParseAccess(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// VerifyRefresh reports whether token is a valid, unexpired refresh token.
// Any failure yields (nil, false).
func (i *Issuer) VerifyRefresh(token string) (*Claims, bool) {
	claims, err := i.ParseRefresh(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// ParseAccess is VerifyAccess with the underlying error kept for diagnostics.
func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(i.access, token)
}

// ParseRefresh is VerifyRefresh with the underlying error kept for diagnostics.
func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(i.refresh, token)
}

func (i *Issuer) parse(s signer, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, jwt.ErrTokenMalformed
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}
	if i.config.Audience != "" {
		options = append(options, jwt.WithAudience(i.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if s.keyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != s.keyID {
				return nil, errors.New("unknown kid")
			}
		}
		return s.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Type != s.kind {
		return nil, fmt.Errorf("%w: expected %s token", jwt.ErrTokenInvalidClaims, s.kind)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", jwt.ErrTokenInvalidClaims)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(time.Now().Add(i.config.MaxFutureIAT)) {
		return nil, errors.New("token iat too far in the future")
	}

	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	if len(key) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
