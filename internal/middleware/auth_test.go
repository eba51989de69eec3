package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/labstack/echo/v4"
)

func TestGetAuth0ID(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name     string
		setup    func(c echo.Context)
		expected string
	}{
		{
			name: "returns auth0 id when present",
			setup: func(c echo.Context) {
				ctx := context.WithValue(c.Request().Context(), Auth0IDKey, "auth0|12345")
				c.SetRequest(c.Request().WithContext(ctx))
			},
			expected: "auth0|12345",
		},
		{
			name:     "returns empty string when not present",
			setup:    func(c echo.Context) {},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			tt.setup(c)

			result := GetAuth0ID(c)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestGetClaims(t *testing.T) {
	e := echo.New()

	t.Run("returns claims when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		claims := &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{
				Subject: "auth0|test",
			},
		}
		ctx := context.WithValue(c.Request().Context(), ClaimsKey, claims)
		c.SetRequest(c.Request().WithContext(ctx))

		result := GetClaims(c)
		if result == nil {
			t.Fatal("Expected claims, got nil")
		}
		if result.RegisteredClaims.Subject != "auth0|test" {
			t.Errorf("Expected subject 'auth0|test', got %q", result.RegisteredClaims.Subject)
		}
	})

	t.Run("returns nil when not present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		result := GetClaims(c)
		if result != nil {
			t.Error("Expected nil, got claims")
		}
	})
}

func TestGetCustomClaims(t *testing.T) {
	e := echo.New()

	t.Run("returns custom claims when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		customClaims := &CustomClaims{
			Email:       "officer@example.com",
			Name:        "Loan Officer",
			WorkspaceID: 7,
		}
		claims := &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{
				Subject: "auth0|test",
			},
			CustomClaims: customClaims,
		}
		ctx := context.WithValue(c.Request().Context(), ClaimsKey, claims)
		c.SetRequest(c.Request().WithContext(ctx))

		result := GetCustomClaims(c)
		if result == nil {
			t.Fatal("Expected custom claims, got nil")
		}
		if result.Email != "officer@example.com" {
			t.Errorf("Expected email 'officer@example.com', got %q", result.Email)
		}
		if result.WorkspaceID != 7 {
			t.Errorf("Expected workspace 7, got %d", result.WorkspaceID)
		}
	})

	t.Run("returns nil when claims not present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		result := GetCustomClaims(c)
		if result != nil {
			t.Error("Expected nil, got custom claims")
		}
	})
}

func TestCustomClaims_Validate(t *testing.T) {
	claims := &CustomClaims{
		Email:       "test@example.com",
		WorkspaceID: 1,
	}

	err := claims.Validate(context.Background())
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestCustomClaims_WorkspaceClaimName(t *testing.T) {
	var claims CustomClaims
	payload := `{"email":"a@b.test","https://cicilan.app/workspace_id":12}`
	if err := json.Unmarshal([]byte(payload), &claims); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if claims.WorkspaceID != 12 {
		t.Errorf("Expected workspace 12, got %d", claims.WorkspaceID)
	}
}

// fakeValidator implements TokenValidator for testing
type fakeValidator struct {
	claims interface{}
	err    error
	token  string
}

func (f *fakeValidator) ValidateToken(ctx context.Context, token string) (interface{}, error) {
	f.token = token
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func validClaims(workspaceID int32) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: "auth0|officer"},
		CustomClaims:     &CustomClaims{WorkspaceID: workspaceID},
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name      string
		header    string
		validator *fakeValidator
	}{
		{"missing header", "", &fakeValidator{claims: validClaims(1)}},
		{"no bearer prefix", "invalid-token", &fakeValidator{claims: validClaims(1)}},
		{"wrong prefix", "Basic token123", &fakeValidator{claims: validClaims(1)}},
		{"invalid token", "Bearer bad", &fakeValidator{err: errors.New("expired")}},
		{"unexpected claims type", "Bearer ok", &fakeValidator{claims: "not-claims"}},
		{"missing workspace claim", "Bearer ok", &fakeValidator{claims: validClaims(0)}},
		{"no custom claims", "Bearer ok", &fakeValidator{claims: &validator.ValidatedClaims{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddlewareWithValidator(tt.validator)
			called := false
			handler := m.Authenticate()(func(c echo.Context) error {
				called = true
				return c.String(http.StatusOK, "ok")
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/loans", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := handler(c); err != nil {
				t.Fatalf("Expected problem response, got error %v", err)
			}
			if called {
				t.Error("Handler should not be called")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", rec.Code)
			}

			var body problemDetails
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Expected problem details body, got %v", err)
			}
			if body.Type != errorTypeUnauthorized {
				t.Errorf("Expected type %q, got %q", errorTypeUnauthorized, body.Type)
			}
			if body.Instance != "/api/v1/loans" {
				t.Errorf("Expected instance /api/v1/loans, got %q", body.Instance)
			}
		})
	}
}

func TestAuthMiddleware_InjectsIdentity(t *testing.T) {
	e := echo.New()
	fv := &fakeValidator{claims: validClaims(42)}
	m := NewAuthMiddlewareWithValidator(fv)

	var gotWorkspace int32
	var gotAuth0ID string
	handler := m.Authenticate()(func(c echo.Context) error {
		gotWorkspace = GetWorkspaceID(c)
		gotAuth0ID = GetAuth0ID(c)
		if GetClaims(c) == nil {
			t.Error("Expected claims in context")
		}
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc.def.ghi")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if fv.token != "abc.def.ghi" {
		t.Errorf("Expected token abc.def.ghi, got %q", fv.token)
	}
	if gotWorkspace != 42 {
		t.Errorf("Expected workspace 42, got %d", gotWorkspace)
	}
	if gotAuth0ID != "auth0|officer" {
		t.Errorf("Expected auth0|officer, got %q", gotAuth0ID)
	}
}

func TestGetWorkspaceID(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name     string
		setup    func(c echo.Context)
		expected int32
	}{
		{
			name: "returns workspace id when present",
			setup: func(c echo.Context) {
				ctx := context.WithValue(c.Request().Context(), WorkspaceIDKey, int32(42))
				c.SetRequest(c.Request().WithContext(ctx))
			},
			expected: 42,
		},
		{
			name: "set through WithIdentity",
			setup: func(c echo.Context) {
				WithIdentity(c, "auth0|x", 9)
			},
			expected: 9,
		},
		{
			name:     "returns 0 when not present",
			setup:    func(c echo.Context) {},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			tt.setup(c)

			result := GetWorkspaceID(c)
			if result != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, result)
			}
		})
	}
}
