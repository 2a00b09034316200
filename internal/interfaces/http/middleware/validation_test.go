package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bau/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValidationErrors(t *testing.T) {
	type TestStruct struct {
		CompanyName string `json:"companyName" binding:"notblank"`
		Email       string `json:"email" binding:"required,email"`
	}

	// Setup validator
	SetupValidator()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req TestStruct
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	t.Run("returns validation errors for invalid input", func(t *testing.T) {
		body := strings.NewReader(`{"companyName": "   ", "email": "invalid"}`)
		req := httptest.NewRequest("POST", "/test", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)

		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)
		require.Len(t, resp.Error.Details, 2)
		assert.Equal(t, "companyName", resp.Error.Details[0].Field)
		assert.Equal(t, "This field is required", resp.Error.Details[0].Message)
		assert.Equal(t, "email", resp.Error.Details[1].Field)
	})

	t.Run("returns success for valid input", func(t *testing.T) {
		body := strings.NewReader(`{"companyName": "Acme", "email": "ops@acme.test"}`)
		req := httptest.NewRequest("POST", "/test", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestValidationSummary(t *testing.T) {
	SetupValidator()

	type body struct {
		CompanyName string `json:"companyName" binding:"notblank"`
		Email       string `json:"email" binding:"required,email"`
	}

	err := binding.Validator.ValidateStruct(&body{CompanyName: " ", Email: "invalid"})
	require.Error(t, err)
	assert.EqualError(t, ValidationSummary(err),
		"request validation failed: companyName: This field is required; email: Invalid email format")

	var syntax *json.SyntaxError
	err = ValidationSummary(json.Unmarshal([]byte(`{"companyName":`), &body{}))
	assert.True(t, strings.HasPrefix(err.Error(), "request validation failed: "))
	assert.True(t, errors.As(err, &syntax))
}

func TestValidationMessage(t *testing.T) {
	SetupValidator()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	type input struct {
		CompanyName string   `json:"companyName" binding:"notblank,max=10"`
		AdminEmail  string   `json:"adminEmail" binding:"email"`
		Code        string   `json:"code" binding:"len=3"`
		Order       string   `form:"order_dir" binding:"oneof=asc desc"`
		Modules     []string `json:"modules" binding:"max=2,dive,modulename"`
		ID          string   `uri:"id" binding:"uuid"`
	}

	err := v.Struct(input{
		CompanyName: "A very long company",
		AdminEmail:  "nope",
		Code:        "ab",
		Order:       "sideways",
		Modules:     []string{"Human Resources", "crm,hr"},
		ID:          "x",
	})
	var fieldErrs validator.ValidationErrors
	require.ErrorAs(t, err, &fieldErrs)

	got := map[string]string{}
	for _, fe := range fieldErrs {
		got[fe.Field()] = validationMessage(fe)
	}
	assert.Equal(t, map[string]string{
		"companyName": "Must be at most 10 characters",
		"adminEmail":  "Invalid email format",
		"code":        "Must be exactly 3 characters",
		"order_dir":   "Must be one of: asc desc",
		"modules[1]":  "Module names must be non-blank and must not contain commas",
		"id":          "Invalid UUID format",
	}, got)
}

func TestValidationMessage_SliceBounds(t *testing.T) {
	SetupValidator()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	type input struct {
		Modules []string `json:"modules" binding:"max=1"`
	}
	var fieldErrs validator.ValidationErrors
	require.ErrorAs(t, v.Struct(input{Modules: []string{"crm", "hr"}}), &fieldErrs)
	assert.Equal(t, "Must be at most 1 items", validationMessage(fieldErrs[0]))
}

func TestHandleValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("handles validator.ValidationErrors", func(t *testing.T) {
		type Input struct {
			Name string `json:"name" binding:"required"`
		}

		router := gin.New()
		router.POST("/test", func(c *gin.Context) {
			var input Input
			if err := c.ShouldBindJSON(&input); err != nil {
				HandleValidationError(c, err)
				return
			}
		})

		body := strings.NewReader(`{}`)
		req := httptest.NewRequest("POST", "/test", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeValidation)
	})

	t.Run("echoes the request id", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.POST("/test", func(c *gin.Context) {
			HandleValidationError(c, assert.AnError)
		})

		req := httptest.NewRequest("POST", "/test", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"requestId":"req-123"`)
	})
}
