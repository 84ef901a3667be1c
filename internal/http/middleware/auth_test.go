package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/DionathaGoulart/pets-auth/internal/domain"
	"github.com/DionathaGoulart/pets-auth/internal/jwt"
)

type memKeyRepo struct {
	key *domain.SigningKey
}

func (r *memKeyRepo) GetActive(_ context.Context) (domain.SigningKey, error) {
	if r.key == nil {
		return domain.SigningKey{}, domain.ErrNotFound
	}
	return *r.key, nil
}

func (r *memKeyRepo) Create(_ context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	r.key = &key
	return key, nil
}

func newAuthRouter(t *testing.T) (*gin.Engine, *jwt.Generator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	generator := jwt.NewGenerator(jwt.NewKeyManager(&memKeyRepo{}, node), time.Minute)

	r := gin.New()
	auth := NewAuth(generator, "pets-auth-test")
	r.GET("/whoami", auth.ValidateJWT, func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user id"})
			return
		}
		claims, ok := GetAccessClaims(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no claims"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": userID, "username": claims.Username, "email": claims.Email})
	})
	return r, generator
}

func TestValidateJWT_AttachesIdentityAndClaims(t *testing.T) {
	r, generator := newAuthRouter(t)

	token, err := generator.GenerateAccessToken(context.Background(), domain.User{
		ID:       42,
		Username: "ana",
		Email:    "ana@example.com",
	}, "pets-auth-test")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":42`)
	require.Contains(t, rec.Body.String(), `"username":"ana"`)
}

func TestValidateJWT_RejectsBadHeaders(t *testing.T) {
	r, _ := newAuthRouter(t)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
