package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Query string `validate:"required,max=5"`
	Mode  string `validate:"omitempty,oneof=normal enhanced"`
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     sample
		wantErr string
	}{
		{"valid", sample{Query: "hi", Mode: "normal"}, ""},
		{"missing query", sample{}, "query is required"},
		{"too long", sample{Query: "abcdefg"}, "query must be at most 5 characters"},
		{"bad mode", sample{Query: "hi", Mode: "turbo"}, "mode must be one of [normal enhanced]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var fe *fiber.Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, fiber.StatusBadRequest, fe.Code)
			assert.Contains(t, fe.Message, tt.wantErr)
		})
	}
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/bad", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "nope") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db down") })

	tests := []struct {
		path string
		code int
		msg  string
	}{
		{"/bad", fiber.StatusBadRequest, "nope"},
		{"/boom", fiber.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			var got BaseResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.False(t, got.Success)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.msg, got.Message)
		})
	}
}
