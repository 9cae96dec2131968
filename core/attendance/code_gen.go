package attendance

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

// codeSpace is the number of possible session codes ("0000" - "9999").
var codeSpace = big.NewInt(10000)

// GenerateCode draws uniform random 4-digit codes (leading zeros allowed),
// re-drawing while `isTaken` reports a collision. It gives up with
// ErrCodeSpaceExhausted after maxAttempts draws: the code space only has
// 10,000 values and systemic contention must be surfaced, not looped on.
func GenerateCode(isTaken func(code string) bool, maxAttempts int) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		n, err := rand.Int(rand.Reader, codeSpace)
		if err != nil {
			return "", errors.Wrap(err, "drawing session code")
		}
		code := fmt.Sprintf("%04d", n.Int64())
		if !isTaken(code) {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
