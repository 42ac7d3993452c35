package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func TestIssuerRoundTrip(t *testing.T) {
	issuer, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	token, expiresAt, err := issuer.GenerateLearnerToken("learner-42")
	if err != nil {
		t.Fatalf("GenerateLearnerToken() error = %v", err)
	}
	if time.Until(expiresAt) < 6*24*time.Hour {
		t.Errorf("token should be valid for 7 days, expires at %v", expiresAt)
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.LearnerID != "learner-42" || claims.Role != RoleLearner {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestIssuerRejects(t *testing.T) {
	issuer, _ := NewIssuer("test-secret")
	other, _ := NewIssuer("other-secret")

	foreign, _, _ := other.GenerateLearnerToken("learner-1")

	expiredIssuer, _ := NewIssuer("test-secret")
	expiredIssuer.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	expired, _, _ := expiredIssuer.GenerateLearnerToken("learner-1")

	deviceClaims := &JWTClaims{
		LearnerID: "learner-1",
		Role:      "device",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	wrongRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, deviceClaims).SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"wrong role", wrongRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.ValidateToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}

	if _, err := NewIssuer(""); err == nil {
		t.Error("NewIssuer() with empty secret should fail")
	}
	if _, _, err := issuer.GenerateLearnerToken(" "); err == nil {
		t.Error("GenerateLearnerToken() with empty learner should fail")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		query   string
		want    string
		wantErr bool
	}{
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "query parameter", query: "?token=xyz", want: "xyz"},
		{name: "basic auth", header: "Basic abc", wantErr: true},
		{name: "missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := TokenFromRequest(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TokenFromRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	issuer, _ := NewIssuer("test-secret")
	token, _, _ := issuer.GenerateLearnerToken("learner-7")

	e := echo.New()
	handler := issuer.Middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, LearnerID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Body.String() != "learner-7" {
		t.Errorf("learner = %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	err := handler(e.NewContext(req, rec))
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}
