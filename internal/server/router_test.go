package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gemwallet/internal/handler"
	"gemwallet/internal/network"
	"gemwallet/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := network.NewStore(context.Background(), storage.NewMemoryStore(), network.Mainnet, "")
	require.NoError(t, err)

	r := NewHTTPRouter(Handlers{Networks: handler.NewNetworkHandler(store)})

	tests := []struct {
		name     string
		path     string
		wantCode int
		contains string
	}{
		{name: "健康检查", path: "/health", wantCode: http.StatusOK, contains: `"UP"`},
		{name: "网络", path: "/api/v1/network", wantCode: http.StatusOK, contains: `"mainnet"`},
		{name: "监控指标", path: "/metrics", wantCode: http.StatusOK, contains: "http_requests_total"},
		{name: "swagger 文档", path: "/swagger/doc.json", wantCode: http.StatusOK, contains: "/api/v1/confirmations"},
		{name: "未注册的 ws", path: "/ws", wantCode: http.StatusNotFound},
		{name: "未注册的确认路由", path: "/api/v1/confirmations", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.contains != "" {
				assert.True(t, strings.Contains(w.Body.String(), tt.contains), w.Body.String())
			}
		})
	}
}
