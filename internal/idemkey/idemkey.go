package idemkey

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Generate mints a fresh idempotency key for one purchase attempt.
// Keys are never reused: the flow mints a new one after every submission,
// whatever the outcome. Collision resistance here is best-effort; the
// contract's write-once check on the encoded key is the real safety net.
func Generate() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}

// Encode maps a key to the fixed-width identifier the contract stores
// orders under.
func Encode(key string) [32]byte {
	return crypto.Keccak256Hash([]byte(key))
}

// EncodeBig returns the same identifier as Encode in the integer form
// getOrder expects.
func EncodeBig(key string) *big.Int {
	id := Encode(key)
	return new(big.Int).SetBytes(id[:])
}
