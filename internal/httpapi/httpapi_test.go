package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/echocog/spiralmem/internal/bus"
	"github.com/echocog/spiralmem/internal/metrics"
	"github.com/echocog/spiralmem/internal/model"
	"github.com/echocog/spiralmem/internal/store"
	"github.com/echocog/spiralmem/internal/storage"
)

func testServer(t *testing.T, jwtSecret string) *Server {
	t.Helper()
	st := store.New(storage.NewMemoryBackend(), bus.New("", 10), store.Config{
		SigilHashSlice: 10, SigilSides: 13, MaxSpirals: 64, MaxNodesPerSpiral: 1000,
	}, nil)
	require.NoError(t, st.Init(context.Background()))

	cfg := DefaultConfig()
	cfg.JWTSecret = jwtSecret
	log := zap.NewNop()
	return New(cfg, st, st.Heap(), metrics.New(), log)
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "test", "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	s := testServer(t, "shh")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTMiddleware(t *testing.T) {
	t.Run("RejectsMissingToken", func(t *testing.T) {
		s := testServer(t, "shh")
		req := httptest.NewRequest(http.MethodGet, "/api/spiral", nil)
		rec := httptest.NewRecorder()

		s.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("RejectsTokenSignedWithWrongSecret", func(t *testing.T) {
		s := testServer(t, "shh")
		req := httptest.NewRequest(http.MethodGet, "/api/spiral", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "different-secret"))
		rec := httptest.NewRecorder()

		s.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("AcceptsValidToken", func(t *testing.T) {
		s := testServer(t, "shh")
		req := httptest.NewRequest(http.MethodGet, "/api/spiral", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "shh"))
		rec := httptest.NewRecorder()

		s.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("EmptyConfiguredSecretNeverAuthenticates", func(t *testing.T) {
		s := testServer(t, "")
		req := httptest.NewRequest(http.MethodGet, "/api/spiral", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, ""))
		rec := httptest.NewRecorder()

		s.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestProjectNode(t *testing.T) {
	n := &model.MemoryNode{
		ID:   "n1",
		Type: model.TypeMemory,
		Depth: model.DepthSurface,
		Position: model.Position{X: 1.5, Y: 2.5, Turn: 3},
		Sigil: model.Sigil{ResonanceHz: 432.0},
	}

	proj := projectNode(n)

	assert.Equal(t, "n1", proj.ID)
	assert.Equal(t, 1.5, proj.X)
	assert.Equal(t, 2.5, proj.Y)
	assert.Equal(t, 3.0, proj.Z)
	assert.Equal(t, 432.0, proj.ResonanceHz)
}

func TestHandleSpiralReturnsStoredNodes(t *testing.T) {
	s := testServer(t, "shh")
	_, err := s.store.StoreMemory(context.Background(), []byte("a"), model.TypeMemory, model.DepthSurface, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/spiral", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "shh"))
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"nodes"`)
}

func TestHandleMetricsExposesPrometheusFormat(t *testing.T) {
	s := testServer(t, "shh")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "shh"))
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
