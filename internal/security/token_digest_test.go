package security

import (
	"testing"
)

func TestDigestToken_Deterministic(t *testing.T) {
	a := DigestToken("tok")
	b := DigestToken("tok")
	if a != b {
		t.Errorf("digest not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
	if DigestToken("other") == a {
		t.Error("different tokens should have different digests")
	}
}

func TestTokenDigestEqual(t *testing.T) {
	stored := DigestToken("tok")
	if !TokenDigestEqual("tok", stored) {
		t.Error("matching token should compare equal")
	}
	if TokenDigestEqual("tok2", stored) {
		t.Error("different token should not compare equal")
	}
	if TokenDigestEqual("tok", "") {
		t.Error("empty stored digest should not match")
	}
}
