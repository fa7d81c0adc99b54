package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "s3cret" || !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("Hash = %q, want bcrypt hash", hash)
	}
	if !h.Verify("s3cret", hash) {
		t.Error("Verify(correct) = false, want true")
	}
	if h.Verify("wrong", hash) {
		t.Error("Verify(wrong) = true, want false")
	}
}

// 同じ平文でもソルトにより異なるハッシュになることを検証
func TestBcryptHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, err := h.Hash("same")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same plaintext are identical")
	}
}

// 不正なハッシュはエラーではなくfalseになることを検証
func TestBcryptHasher_VerifyInvalidHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	if h.Verify("x", "not-a-hash") {
		t.Error("Verify(invalid hash) = true, want false")
	}
	if h.Verify("x", "") {
		t.Error("Verify(empty hash) = true, want false")
	}
}

func TestNewBcryptHasher_OutOfRangeCostFallsBack(t *testing.T) {
	for _, cost := range []int{0, 1, bcrypt.MaxCost + 1} {
		h := NewBcryptHasher(cost)
		if h.cost != DefaultBcryptCost {
			t.Errorf("NewBcryptHasher(%d).cost = %d, want %d", cost, h.cost, DefaultBcryptCost)
		}
	}
}
