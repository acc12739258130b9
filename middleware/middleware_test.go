// middleware/middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"game-matchmaking-system/services"

	"github.com/gofiber/fiber/v2"
)

func request(t *testing.T, app *fiber.App, auth string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestGatewayAuthMiddleware(t *testing.T) {
	t.Setenv("MATCHMAKING_SERVICE_TOKEN", "svc-token")

	app := fiber.New()
	app.Get("/ping", GatewayAuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(200)
	})

	tests := []struct {
		name       string
		auth       string
		wantStatus int
	}{
		{"missing header", "", 401},
		{"wrong token", "Bearer nope", 401},
		{"bearer token", "Bearer svc-token", 200},
		{"raw token", "svc-token", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := request(t, app, tt.auth); got != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, got)
			}
		})
	}
}

func TestUserContextMiddleware(t *testing.T) {
	tokens := services.NewTokenService("test-secret")
	good, err := tokens.Issue(map[string]interface{}{"user_id": 42})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	foreign, err := services.NewTokenService("other-secret").Issue(map[string]interface{}{"user_id": 42})
	if err != nil {
		t.Fatalf("issue foreign token: %v", err)
	}
	noUser, err := tokens.Issue(map[string]interface{}{"sub": "nobody"})
	if err != nil {
		t.Fatalf("issue claimless token: %v", err)
	}

	var seenUserID uint
	app := fiber.New()
	app.Get("/ping", UserContextMiddleware(tokens), func(c *fiber.Ctx) error {
		seenUserID = c.Locals("user_id").(uint)
		return c.SendStatus(200)
	})

	tests := []struct {
		name       string
		auth       string
		wantStatus int
	}{
		{"missing header", "", 403},
		{"garbage token", "Bearer garbage", 403},
		{"wrong secret", "Bearer " + foreign, 403},
		{"no user claim", "Bearer " + noUser, 403},
		{"valid token", "Bearer " + good, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := request(t, app, tt.auth); got != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, got)
			}
		})
	}

	if seenUserID != 42 {
		t.Fatalf("expected user id 42 in context, got %d", seenUserID)
	}
}
