package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/imagery/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/imagery/internal/render"
	"github.com/jaennil/guide_helper/backend/imagery/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/imagery/internal/tilesource"
	"github.com/jaennil/guide_helper/backend/imagery/internal/usecase"
	"github.com/jaennil/guide_helper/backend/imagery/internal/webcache"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/config"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type api struct {
	router *gin.Engine
	status *usecase.StatusUseCase
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var tile bytes.Buffer
	require.NoError(t, png.Encode(&tile, image.NewRGBA(image.Rect(0, 0, 256, 256))))
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tile.Bytes())
	}))
	t.Cleanup(upstream.Close)

	disk := cache.NewMapCache()
	factory := func(src *tilesource.Source) *webcache.Cache {
		return webcache.New(webcache.Config{Provider: src.Identifier(), MemoryCount: 100, MemoryBytes: 1 << 26}, disk)
	}
	src, err := tilesource.New(tilesource.Config{Name: "Test", Identifier: "test", URL: upstream.URL + "/{z}/{x}/{y}.png"})
	require.NoError(t, err)

	l := logger.NewNoOp()
	status := usecase.NewStatusUseCase(l)
	layer := usecase.NewLayerUseCase(src, factory, render.NewCanvas(), status, config.Layer{}, time.Hour, l)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = layer.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		layer.Close()
	})

	h := handler.NewHandler(validator.New(), layer, status, usecase.NewPrefetchUseCase(layer, 2, l))
	return &api{router: NewRouter(h, l, false), status: status}
}

func (a *api) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)

	w, env := a.do(t, http.MethodGet, "/api/v1/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "OK", env.Message)
	assert.JSONEq(t, `{"source": "test", "in_flight": 0}`, string(env.Data))
}

func TestViewportValidation(t *testing.T) {
	a := newAPI(t)

	for name, body := range map[string]string{
		"missing size": `{"lon": 0, "lat": 0, "zoom": 2}`,
		"bad lat":      `{"lat": 91, "zoom": 2, "width": 100, "height": 100}`,
		"bad zoom":     `{"zoom": 40, "width": 100, "height": 100}`,
	} {
		w, env := a.do(t, http.MethodPut, "/api/v1/layer/viewport", body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, name)
		assert.False(t, env.Success, name)
	}

	w, env := a.do(t, http.MethodPut, "/api/v1/layer/viewport", `{"zoom":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "failed to decode request body", env.Message)
}

func TestViewportLoadsTiles(t *testing.T) {
	a := newAPI(t)

	w, env := a.do(t, http.MethodPut, "/api/v1/layer/viewport", `{"lon": 0, "lat": 0, "zoom": 2, "width": 512, "height": 512}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	require.Eventually(t, func() bool {
		_, env := a.do(t, http.MethodGet, "/api/v1/layer/tiles", "")
		var tiles struct {
			Count int `json:"count"`
			Tiles []struct {
				State string `json:"state"`
			} `json:"tiles"`
		}
		if json.Unmarshal(env.Data, &tiles) != nil || tiles.Count != 4 {
			return false
		}
		for _, tile := range tiles.Tiles {
			if tile.State != "loaded" {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	w, _ = a.do(t, http.MethodGet, "/api/v1/snapshot.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w, env = a.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats webcache.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 4, stats.DiskCount)
}

func TestSnapshotWithoutViewport(t *testing.T) {
	a := newAPI(t)

	w, env := a.do(t, http.MethodGet, "/api/v1/snapshot.png", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, usecase.ErrNoViewport.Error(), env.Message)
}

func TestSetSource(t *testing.T) {
	a := newAPI(t)

	w, env := a.do(t, http.MethodPut, "/api/v1/layer/source", `{"preset": "gps"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var info usecase.SourceInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "OSM GPS Traces", info.Name)

	w, _ = a.do(t, http.MethodPut, "/api/v1/layer/source", `{"preset": "nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = a.do(t, http.MethodPut, "/api/v1/layer/source", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, env = a.do(t, http.MethodGet, "/api/v1/layer/source", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "OsmGpsTraceIdentifier", info.Identifier)
}

func TestErrorsEndpoints(t *testing.T) {
	a := newAPI(t)
	a.status.ReportError("Imagery", errors.New("boom"))

	w, env := a.do(t, http.MethodGet, "/api/v1/errors", "")
	require.Equal(t, http.StatusOK, w.Code)
	var reported []usecase.ReportedError
	require.NoError(t, json.Unmarshal(env.Data, &reported))
	require.Len(t, reported, 1)
	assert.Equal(t, "boom", reported[0].Message)

	w, _ = a.do(t, http.MethodDelete, "/api/v1/errors/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = a.do(t, http.MethodDelete, "/api/v1/errors/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.do(t, http.MethodDelete, "/api/v1/errors/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, a.status.Errors())
}

func TestDarkModeAndStatus(t *testing.T) {
	a := newAPI(t)

	w, _ := a.do(t, http.MethodPut, "/api/v1/layer/darkmode", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = a.do(t, http.MethodPut, "/api/v1/layer/darkmode", `{"enabled": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := a.do(t, http.MethodGet, "/api/v1/layer", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		DarkMode bool `json:"dark_mode"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.DarkMode)
}

func TestPrefetchBound(t *testing.T) {
	a := newAPI(t)

	w, _ := a.do(t, http.MethodPost, "/api/v1/layer/prefetch", `{"bound": {"west": 10, "south": 0, "east": 5, "north": 10}, "zoom": 3}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = a.do(t, http.MethodPost, "/api/v1/layer/prefetch", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code, "no viewport to prefetch around")

	w, env := a.do(t, http.MethodPost, "/api/v1/layer/prefetch", `{"bound": {"west": 10, "south": 10, "east": 170, "north": 80}, "zoom": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	var result usecase.PrefetchResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	// one tile at zoom 1, four at 2, sixteen at 3
	assert.Equal(t, usecase.PrefetchResult{Requested: 21, Downloaded: 21}, result)
}
