package utils

import "testing"

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := GenerateReferralCode()
		if err != nil {
			t.Fatalf("GenerateReferralCode failed: %v", err)
		}
		if len(code) != ReferralCodeLength {
			t.Fatalf("expected length %d, got %q", ReferralCodeLength, code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q after %d draws", code, i)
		}
		seen[code] = true
	}
}

func BenchmarkGenerateReferralCode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := GenerateReferralCode(); err != nil {
			b.Fatal(err)
		}
	}
}
