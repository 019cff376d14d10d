package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-32ch"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("ops-console", RoleAdmin, testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != "ops-console" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "ops-console")
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", claims.Role, RoleAdmin)
	}
	if claims.Issuer != "upsdash" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(15 * time.Minute))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry off by %v", diff)
	}
}

func TestGenerateToken_DefaultTTL(t *testing.T) {
	token, err := GenerateToken("ops-console", RoleOperator, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(defaultTTL))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL expiry off by %v", diff)
	}
}

func TestGenerateToken_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		role    Role
		secret  string
		want    error
	}{
		{"no secret", "ops", RoleAdmin, "", ErrNoSecret},
		{"no subject", "", RoleAdmin, testSecret, ErrTokenInvalid},
		{"unknown role", "ops", Role("owner"), testSecret, ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateToken(tt.subject, tt.role, tt.secret, time.Minute)
			if !errors.Is(err, tt.want) {
				t.Errorf("GenerateToken() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseToken_Rejections(t *testing.T) {
	valid, err := GenerateToken("ops", RoleOperator, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key any) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("signing: %v", err)
		}
		return s
	}
	now := time.Now()
	base := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}
	}

	expired := base()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	foreign := base()
	foreign.Issuer = "someone-else"
	noExpiry := base()
	noExpiry.ExpiresAt = nil
	noSubject := base()
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-valid-jwt"},
		{"empty", ""},
		{"malformed", "abc.def"},
		{"wrong secret", sign(Claims{RegisteredClaims: base(), Role: RoleAdmin}, jwt.SigningMethodHS256, []byte("another-secret"))},
		{"HS512", sign(Claims{RegisteredClaims: base(), Role: RoleAdmin}, jwt.SigningMethodHS512, []byte(testSecret))},
		{"none alg", sign(Claims{RegisteredClaims: base(), Role: RoleAdmin}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)},
		{"expired", sign(Claims{RegisteredClaims: expired, Role: RoleAdmin}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"foreign issuer", sign(Claims{RegisteredClaims: foreign, Role: RoleAdmin}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"no expiry", sign(Claims{RegisteredClaims: noExpiry, Role: RoleAdmin}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"no subject", sign(Claims{RegisteredClaims: noSubject, Role: RoleAdmin}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"no role", sign(Claims{RegisteredClaims: base()}, jwt.SigningMethodHS256, []byte(testSecret))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, testSecret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}

	if _, err := ParseToken(valid, ""); !errors.Is(err, ErrNoSecret) {
		t.Errorf("ParseToken(no secret) error = %v, want ErrNoSecret", err)
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"admin", "ADMIN", " operator "} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q) error = %v", s, err)
		}
	}
	if _, err := ParseRole("panel"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("ParseRole(panel) error = %v, want ErrInvalidRole", err)
	}
}
