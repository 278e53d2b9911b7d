package utils

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// ReferralCodeLength is the length of generated referral codes.
const ReferralCodeLength = 10

// GenerateReferralCode creates a random referral code using the base58
// alphabet. The code is derived from crypto/rand, never from the account id,
// so codes cannot be predicted or enumerated.
func GenerateReferralCode() (string, error) {
	// 8 random bytes encode to at least 10 base58 characters
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	code := base58.Encode(b)
	for len(code) < ReferralCodeLength {
		extra := make([]byte, 2)
		if _, err := rand.Read(extra); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		code += base58.Encode(extra)
	}

	return code[:ReferralCodeLength], nil
}
