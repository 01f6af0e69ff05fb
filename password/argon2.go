package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// MinLength is the shortest password accepted by Hash.
	MinLength = 8
	// MaxLength bounds hashing work per request.
	MaxLength = 1024
)

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d bytes", MinLength)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d bytes", MaxLength)
	ErrMalformedHash    = errors.New("malformed password hash")
)

// Config holds argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes and verifies passwords in PHC string format.
type Argon2 struct {
	config Config
	// decoy is verified against when the account does not exist.
	decoy *phc
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewArgon2 validates cfg and precomputes the decoy hash used by Burn.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	a := &Argon2{config: cfg}

	salt, err := randomBytes(cfg.SaltLength)
	if err != nil {
		return nil, err
	}
	a.decoy = &phc{
		memory:      cfg.Memory,
		time:        cfg.Time,
		parallelism: cfg.Parallelism,
		salt:        salt,
		hash:        make([]byte, cfg.KeyLength),
	}
	return a, nil
}

// Hash returns the PHC encoding of password under a fresh random salt.
// Bytes are hashed exactly as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrPasswordTooShort
	}
	if len(password) > MaxLength {
		return "", ErrPasswordTooLong
	}

	salt, err := randomBytes(a.config.SaltLength)
	if err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether password matches encodedHash. The parameters stored
// in the hash are used, so hashes made under older settings still verify.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > MaxLength {
		return false, ErrPasswordTooLong
	}
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return parsed.matches(password), nil
}

// Burn performs one verification against a decoy hash and discards the
// result. Callers use it when the account is unknown so the response time
// matches a wrong-password attempt.
func (a *Argon2) Burn(password string) {
	if len(password) > MaxLength {
		password = password[:MaxLength]
	}
	_ = a.decoy.matches(password)
}

func (p *phc) matches(password string) bool {
	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(computed, p.hash) == 1
}

// DeriveKey stretches a passphrase into a symmetric key of keyLen bytes
// with the package's interactive argon2id parameters.
func DeriveKey(passphrase, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keyLen)
}

func parsePHC(encodedHash string) (*phc, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: expected $argon2id$ prefix", ErrMalformedHash)
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: bad version field", ErrMalformedHash)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrMalformedHash, version)
	}

	out := &phc{}
	if err := parseParams(parts[3], out); err != nil {
		return nil, err
	}

	if out.salt, err = decodeSegment(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if out.hash, err = decodeSegment(parts[5]); err != nil || len(out.hash) < int(minKeyLength) {
		return nil, fmt.Errorf("%w: bad digest", ErrMalformedHash)
	}
	return out, nil
}

// decodeSegment accepts both padded and unpadded base64, since PHC strings
// from other tools differ on padding.
func decodeSegment(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func parseParams(part string, out *phc) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(part, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || seen[key] {
			return fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, pair)
		}
		seen[key] = true

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return fmt.Errorf("%w: bad memory parameter", ErrMalformedHash)
			}
			out.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return fmt.Errorf("%w: bad time parameter", ErrMalformedHash)
			}
			out.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return fmt.Errorf("%w: bad parallelism parameter", ErrMalformedHash)
			}
			out.parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, key)
		}
	}
	if len(seen) != 3 {
		return fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	}
	return nil
}

func randomBytes(n uint32) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
