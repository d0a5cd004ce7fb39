package auth

import "testing"

// ─── Password hashing (Argon2id, production cost) ───────────────────

func BenchmarkHasher_Hash(b *testing.B) {
	h := NewHasher(DefaultHasherParams())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Hash("correct-horse-battery-staple") //nolint:errcheck // benchmark
	}
}

func BenchmarkHasher_Verify(b *testing.B) {
	h := NewHasher(DefaultHasherParams())
	digest, err := h.Hash("correct-horse-battery-staple")
	if err != nil {
		b.Fatalf("Hash: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Verify("correct-horse-battery-staple", digest)
	}
}

// ─── Tokens (per-request hot path) ──────────────────────────────────

func BenchmarkTokenIssuer_Issue(b *testing.B) {
	issuer, err := NewTokenIssuer("benchmark-secret-key-32-bytes-xx", 0)
	if err != nil {
		b.Fatalf("NewTokenIssuer: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		issuer.Issue("usr-bench") //nolint:errcheck // benchmark
	}
}

func BenchmarkTokenIssuer_Verify(b *testing.B) {
	issuer, err := NewTokenIssuer("benchmark-secret-key-32-bytes-xx", 0)
	if err != nil {
		b.Fatalf("NewTokenIssuer: %v", err)
	}
	token, _, err := issuer.Issue("usr-bench")
	if err != nil {
		b.Fatalf("Issue: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		issuer.Verify(token) //nolint:errcheck // benchmark
	}
}
