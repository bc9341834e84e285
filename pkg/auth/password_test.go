package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordSaltsEachCall(t *testing.T) {
	const seed = "Sh0bh#Muhurat"
	first, err := HashPassword(seed)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := HashPassword(seed)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatalf("hashes of the same password must differ")
	}
	if cost, err := bcrypt.Cost([]byte(first)); err != nil || cost != bcrypt.DefaultCost {
		t.Fatalf("unexpected bcrypt cost %d (%v)", cost, err)
	}
	if !CheckPassword(seed, first) || !CheckPassword(seed, second) {
		t.Fatalf("both hashes must verify")
	}
	if CheckPassword("sh0bh#muhurat", first) || CheckPassword(seed, "not-a-hash") {
		t.Fatalf("check must fail on wrong password or malformed hash")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		wantErr  string
	}{
		{password: "Sh0bh#Muhurat"},
		{password: "Guru-Pushya-7"},
		{password: "Ab1!", wantErr: "at least 10 characters"},
		{password: "rohini#2025x", wantErr: "uppercase"},
		{password: "ROHINI#2025X", wantErr: "lowercase"},
		{password: "Rohini#Nakshatra", wantErr: "digit"},
		{password: "Rohini2025Nakshatra", wantErr: "special"},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password)
		switch {
		case tc.wantErr == "" && err != nil:
			t.Fatalf("ValidatePassword(%q) = %v, want nil", tc.password, err)
		case tc.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tc.wantErr)):
			t.Fatalf("ValidatePassword(%q) = %v, want error containing %q", tc.password, err, tc.wantErr)
		}
	}
}
