package credential

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerifyRoundTrip(t *testing.T) {
	for _, scheme := range []string{SchemeSHA256, SchemeArgon2id} {
		t.Run(scheme, func(t *testing.T) {
			h, err := NewHasher(scheme)
			if err != nil {
				t.Fatalf("NewHasher: %v", err)
			}
			stored, err := h.Hash([]byte("s3cret"))
			if err != nil {
				t.Fatalf("Hash: %v", err)
			}
			ok, err := Verify([]byte("s3cret"), stored)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if !ok {
				t.Fatal("expected matching secret to verify")
			}
			ok, err = Verify([]byte("wrong"), stored)
			if err != nil {
				t.Fatalf("Verify wrong secret: %v", err)
			}
			if ok {
				t.Fatal("expected mismatching secret to fail verification")
			}
		})
	}
}

func TestHashProducesDistinctSalts(t *testing.T) {
	h, err := NewHasher(SchemeSHA256)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	first, err := h.Hash([]byte("same secret"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	second, err := h.Hash([]byte("same secret"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct stored credentials for the same secret")
	}
	for _, stored := range []string{first, second} {
		ok, err := Verify([]byte("same secret"), stored)
		if err != nil || !ok {
			t.Fatalf("expected both credentials to verify, ok=%v err=%v", ok, err)
		}
	}
}

func TestVerifyRejectsCorruptStoredValue(t *testing.T) {
	digest := strings.Repeat("A", 43) // 32 zero bytes, raw base64
	cases := []string{
		"not base64 at all!!!",
		"c2hvcnQ=", // decodes but far too short
		"$argon2id$v=19$garbage",
		"$argon2id$v=19$m=65536,t=2,p=1$bad salt$bad hash",
		"$argon2id$v=19$m=8,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",        // empty digest
		"$argon2id$v=19$m=8,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$c2hvcnQ", // truncated digest
		"$argon2id$v=19$m=8,t=1,p=1$$" + digest,                     // empty salt
		"$argon2id$v=19$m=8,t=1,p=0$c2FsdHNhbHRzYWx0c2FsdA$" + digest,
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$" + digest,
	}
	for _, stored := range cases {
		if _, err := Verify([]byte("anything"), stored); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("stored %q: expected ErrInvalidFormat, got %v", stored, err)
		}
	}
}

func TestSchemeSelection(t *testing.T) {
	h, err := NewHasher(SchemeArgon2id)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	stored, err := h.Hash([]byte("pw"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(stored, "$argon2id$v=19$") {
		t.Fatalf("unexpected argon2id encoding: %s", stored)
	}
	if _, err := NewHasher("md5"); err == nil {
		t.Fatal("expected unsupported scheme to be rejected")
	}
}
