package rate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DefaultPrefix namespaces throttle counters.
const DefaultPrefix = "ec:rl:"

func (l *Limiter) loginUserKey(username string) string {
	return l.config.Prefix + "lu:" + digest(strings.ToLower(username))
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + "li:" + ip
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
