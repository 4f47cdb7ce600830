package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankbridge/backend/internal/interfaces/http/dto"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping() error { return f.err }

func TestSystemHandler_Health(t *testing.T) {
	t.Run("ok when database reachable", func(t *testing.T) {
		h := NewSystemHandler(&fakePinger{})
		c, w := newTestContext(t, http.MethodGet, "/healthz")

		h.Health(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "ok", data["status"])
		assert.Equal(t, "ok", data["database"])
	})

	t.Run("503 when database unreachable", func(t *testing.T) {
		h := NewSystemHandler(&fakePinger{err: errors.New("connection refused")})
		c, w := newTestContext(t, http.MethodGet, "/healthz")

		h.Health(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "degraded", data["status"])
		assert.Equal(t, "unreachable", data["database"])
	})
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler(nil)
	c, w := newTestContext(t, http.MethodGet, "/system/info")

	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "BankBridge API", data["name"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
}
