package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DionathaGoulart/pets-auth/internal/config"
	"github.com/DionathaGoulart/pets-auth/internal/domain/oauth"
	"github.com/DionathaGoulart/pets-auth/internal/service"
	authsvc "github.com/DionathaGoulart/pets-auth/internal/service/auth"
)

type stubGoogleService struct {
	session *service.Session
	err     error
}

func (s *stubGoogleService) Callback(_ context.Context, _ authsvc.CallbackInput) (*service.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func newCallbackRouter(google authsvc.GoogleService, cfg config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(nil, google, cfg, zap.NewNop())
	r := gin.New()
	r.POST("/api/auth/google/callback", h.GoogleCallback)
	return r
}

func postCallback(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/google/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGoogleCallback_Success(t *testing.T) {
	stub := &stubGoogleService{session: &service.Session{
		Access:  "access",
		Refresh: "refresh",
		User:    service.UserPayload{ID: 1, Username: "ana", Email: "ana@example.com"},
	}}
	r := newCallbackRouter(stub, config.Config{})

	rec := postCallback(t, r, `{"code":"c","redirect_uri":"https://app/cb"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "access", resp.Access)
	require.Equal(t, "ana", resp.User.Username)
}

func TestGoogleCallback_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid grant", oauth.ErrInvalidGrant, http.StatusBadRequest, "invalid_grant"},
		{"incomplete profile", oauth.ErrIncompleteProfile, http.StatusBadRequest, "incomplete_profile"},
		{"provider down", oauth.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
		{"internal", errors.New("pool exhausted"), http.StatusInternalServerError, "server_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newCallbackRouter(&stubGoogleService{err: tc.err}, config.Config{})
			rec := postCallback(t, r, `{"code":"c","redirect_uri":"https://app/cb"}`)
			require.Equal(t, tc.status, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tc.code, resp["error"])
		})
	}
}

func TestGoogleCallback_InternalDetailHiddenInProduction(t *testing.T) {
	internal := errors.New("pq: connection refused")

	r := newCallbackRouter(&stubGoogleService{err: internal}, config.Config{Environment: "production"})
	rec := postCallback(t, r, `{"code":"c","redirect_uri":"https://app/cb"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")

	r = newCallbackRouter(&stubGoogleService{err: internal}, config.Config{Environment: "development"})
	rec = postCallback(t, r, `{"code":"c","redirect_uri":"https://app/cb"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
}

func TestGoogleCallback_MalformedBody(t *testing.T) {
	r := newCallbackRouter(&stubGoogleService{}, config.Config{})
	rec := postCallback(t, r, `{"code":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
