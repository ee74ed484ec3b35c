package idemkey

import (
	"math/big"
	"testing"
)

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		key := Generate()
		if key == "" {
			t.Fatal("empty key")
		}
		if seen[key] {
			t.Fatalf("duplicate key after %d generations: %s", i, key)
		}
		seen[key] = true
	}
}

func TestEncodeStable(t *testing.T) {
	key := Generate()
	a := Encode(key)
	b := Encode(key)
	if a != b {
		t.Fatal("encoding the same key twice gave different identifiers")
	}
	if Encode(key) == Encode(key+"x") {
		t.Fatal("distinct keys encoded to the same identifier")
	}
}

func TestEncodeBigMatchesBytes(t *testing.T) {
	key := "1700000000000-abc"
	id := Encode(key)
	want := new(big.Int).SetBytes(id[:])
	if got := EncodeBig(key); got.Cmp(want) != 0 {
		t.Fatalf("EncodeBig = %s, want %s", got, want)
	}
}
