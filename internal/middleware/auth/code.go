package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// codeAlphabet skips look-alike characters (0/O, 1/I/L) since codes are typed by hand.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const CodeLength = 8

// dummyHash is compared against when the account does not exist, so a miss
// costs the same as a wrong code.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("dummy-confirmation-code"), bcrypt.DefaultCost)
	return h
})

// GenerateCode returns a random confirmation code.
func GenerateCode() (string, error) {
	var sb strings.Builder
	sb.Grow(CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Fingerprint digests the account fields a code is bound to. Any change to
// them yields a different fingerprint and invalidates outstanding codes.
func Fingerprint(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	// bcrypt reads at most 72 bytes; code + separator + 32 hex chars fits
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// HashCode creates a bcrypt hash binding the code to the account fingerprint.
func HashCode(code, fingerprint string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(material(code, fingerprint)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyCode checks a submitted code against the stored hash and the account's
// current fingerprint.
func VerifyCode(hashed, code, fingerprint string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(material(code, fingerprint)))
}

// BurnCompare spends one bcrypt comparison without a real hash.
func BurnCompare(code string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(code))
}

func material(code, fingerprint string) string {
	return strings.ToUpper(strings.TrimSpace(code)) + ":" + fingerprint
}
