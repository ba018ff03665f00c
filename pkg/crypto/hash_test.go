package crypto

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// TestHashToken проверяет хеширование и проверку токена
func TestHashToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"hex token", "3f9a0c1e5b7d2a4c6e8f0a1b3c5d7e9f"},
		{"symbols", "tok_P@ss!#$%"},
		{"near limit", strings.Repeat("a", 72)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashToken(tt.token, bcrypt.MinCost)
			if err != nil {
				t.Fatalf("HashToken failed: %v", err)
			}
			if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
				t.Errorf("hash should have bcrypt prefix, got %s", hash)
			}
			if err := VerifyToken(tt.token, hash); err != nil {
				t.Errorf("VerifyToken failed: %v", err)
			}
			wrong := "x" + tt.token[1:]
			if err := VerifyToken(wrong, hash); err != ErrTokenMismatch {
				t.Errorf("wrong token: got %v, want %v", err, ErrTokenMismatch)
			}
		})
	}
}

func TestHashTokenErrors(t *testing.T) {
	if _, err := HashToken("", bcrypt.MinCost); err != ErrEmptyToken {
		t.Errorf("empty: got %v, want %v", err, ErrEmptyToken)
	}
	if _, err := HashToken(strings.Repeat("a", 73), bcrypt.MinCost); err != ErrTokenTooLong {
		t.Errorf("too long: got %v, want %v", err, ErrTokenTooLong)
	}
}

func TestHashTokenClampsCost(t *testing.T) {
	hash, err := HashToken("token", 1)
	if err != nil {
		t.Fatal(err)
	}
	cost, err := HashCost(hash)
	if err != nil {
		t.Fatal(err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.MinCost)
	}
}

func TestVerifyTokenInvalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
		hash  string
		want  error
	}{
		{"empty token", "", "$2a$04$abc", ErrEmptyToken},
		{"empty hash", "token", "", ErrInvalidHash},
		{"garbage hash", "token", "not-a-hash", ErrInvalidHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyToken(tt.token, tt.hash); err != tt.want {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateToken()
	if len(a) != 64 {
		t.Errorf("token length = %d, want 64", len(a))
	}
	if a == b {
		t.Error("tokens must differ")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHashCostInvalid(t *testing.T) {
	if _, err := HashCost(""); err != ErrInvalidHash {
		t.Errorf("got %v, want %v", err, ErrInvalidHash)
	}
	if _, err := HashCost("plain"); err != ErrInvalidHash {
		t.Errorf("got %v, want %v", err, ErrInvalidHash)
	}
}

// BenchmarkVerifyToken - стоимость проверки на запрос при DefaultCost
func BenchmarkVerifyToken(b *testing.B) {
	hash, _ := HashToken("benchmark-token", DefaultCost)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = VerifyToken("benchmark-token", hash)
	}
}
