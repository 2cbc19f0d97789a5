package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kriging "github.com/flywave/go-okgrid"
	"github.com/flywave/go-okgrid/internal/config"
)

const squareBody = `{
	"samples": [
		{"x": 0, "y": 0, "value": 1},
		{"x": 10, "y": 0, "value": 3},
		{"x": 0, "y": 10, "value": 5},
		{"x": 10, "y": 10, "value": 7}
	],
	"config": {
		"cellSize": 10,
		"parameters": {"type": "gaussian", "nugget": 0, "sill": 4, "range": 15}
	}
}`

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())
	return New(cfg)
}

func do(s *Server, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := do(newTestServer(t, nil), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGrid(t *testing.T) {
	a := assert.New(t)
	s := newTestServer(t, nil)

	w := do(s, http.MethodPost, "/v1/grid", squareBody, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a.Equal("false", w.Header().Get(regularizedHdr))
	a.Equal("ncols         2\nnrows         2\nxllcorner     0\nyllcorner     0\ncellsize      10\nNODATA_value  -9999\n5 7\n1 3\n", w.Body.String())

	w = do(s, http.MethodPost, "/v1/grid?format=csv", squareBody, nil)
	require.Equal(t, http.StatusOK, w.Code)
	a.Contains(w.Header().Get("Content-Type"), "text/csv")
	a.True(strings.HasPrefix(w.Body.String(), "x,y,value,variance\n0,10,5,0\n"))

	w = do(s, http.MethodPost, "/v1/grid?halfCell=true&field=variance", squareBody, nil)
	require.Equal(t, http.StatusOK, w.Code)
	a.Contains(w.Body.String(), "xllcorner     -5\n")
	a.True(strings.HasSuffix(w.Body.String(), "0 0\n0 0\n"))
}

func TestGridRegularizedHeader(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Kriging.Regularize = true })
	body := `{"samples":[{"x":5,"y":5,"value":1},{"x":5,"y":5,"value":3}],
		"config":{"parameters":{"type":"gaussian","sill":4,"range":15}}}`

	w := do(s, http.MethodPost, "/v1/grid", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "true", w.Header().Get(regularizedHdr))

	s = newTestServer(t, nil)
	w = do(s, http.MethodPost, "/v1/grid", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "singular")
}

func TestGridRejects(t *testing.T) {
	s := newTestServer(t, nil)
	for name, tc := range map[string]struct {
		target string
		body   string
	}{
		"not json":       {"/v1/grid", "x,y,value"},
		"no samples":     {"/v1/grid", `{"config":{}}`},
		"one sample":     {"/v1/grid", `{"samples":[{"x":0,"y":0,"value":1}]}`},
		"bad model":      {"/v1/grid", `{"samples":[{"x":0,"y":0,"value":1},{"x":1,"y":1,"value":2}],"config":{"model":"cubic"}}`},
		"bad cell size":  {"/v1/grid", `{"samples":[{"x":0,"y":0,"value":1},{"x":1,"y":1,"value":2}],"config":{"cellSize":-1}}`},
		"bad format":     {"/v1/grid?format=tiff", squareBody},
		"bad field":      {"/v1/grid?field=slope", squareBody},
		"bad half cell":  {"/v1/grid?halfCell=maybe", squareBody},
		"too few bins":   {"/v1/variogram", squareBody},
		"bad tie break":  {"/v1/bin", `{"samples":[{"x":0,"y":0,"value":1}],"tieBreak":"first"}`},
		"bin no samples": {"/v1/bin", `{}`},
	} {
		w := do(s, http.MethodPost, tc.target, tc.body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Contains(t, w.Body.String(), `"error"`, name)
	}
}

func TestGridCellLimit(t *testing.T) {
	a := assert.New(t)
	s := newTestServer(t, func(c *config.Config) { c.Kriging.MaxCells = 100 })

	// 11x11 nodes at cell size 1, and the request cannot raise the limit
	body := strings.Replace(squareBody, `"cellSize": 10,`, `"cellSize": 1, "maxCells": 1000000,`, 1)
	w := do(s, http.MethodPost, "/v1/grid", body, nil)
	a.Equal(http.StatusBadRequest, w.Code)
	a.Contains(w.Body.String(), "exceeds")

	w = do(s, http.MethodPost, "/v1/grid", squareBody, nil)
	a.Equal(http.StatusOK, w.Code, w.Body.String())

	s = newTestServer(t, nil)
	huge := `{"samples":[{"x":0,"y":0,"value":1},{"x":1e300,"y":0,"value":2}],
		"config":{"cellSize":1,"parameters":{"type":"gaussian","sill":4,"range":15}}}`
	w = do(s, http.MethodPost, "/v1/grid", huge, nil)
	a.Equal(http.StatusBadRequest, w.Code)
	w = do(s, http.MethodPost, "/v1/bin", `{"samples":[{"x":0,"y":0,"value":1},{"x":1e300,"y":0,"value":2}],"config":{"cellSize":1}}`, nil)
	a.Equal(http.StatusBadRequest, w.Code)
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.MaxBodyBytes = 64 })
	w := do(s, http.MethodPost, "/v1/grid", squareBody, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestVariogram(t *testing.T) {
	a := assert.New(t)
	s := newTestServer(t, nil)

	var samples []string
	for i := 0; i < 30; i++ {
		x := float64(i%6) * 10
		y := float64(i/6) * 10
		samples = append(samples, fmt.Sprintf(`{"x":%v,"y":%v,"value":%v}`, x, y, math.Sin(x/15)*math.Cos(y/20)))
	}
	body := `{"samples":[` + strings.Join(samples, ",") + `],"config":{"model":"exponential"}}`

	w := do(s, http.MethodPost, "/v1/variogram", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Bins  []kriging.VariogramBin `json:"bins"`
		Pairs uint64                 `json:"pairs"`
		Fit   struct {
			Model  kriging.Model `json:"model"`
			Status string        `json:"status"`
		} `json:"fit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	a.Equal(uint64(30*29/2), resp.Pairs)
	a.NotEmpty(resp.Bins)
	a.Equal(kriging.Exponential, resp.Fit.Model.Type)
	a.NotEmpty(resp.Fit.Status)
}

func TestBin(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"samples":[{"x":0,"y":0,"value":1},{"x":0.1,"y":0,"value":5},{"x":2,"y":2,"value":9}],
		"config":{"cellSize":1},"tieBreak":"last"}`

	w := do(s, http.MethodPost, "/v1/bin", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasSuffix(w.Body.String(), "-9999 -9999 9\n-9999 -9999 -9999\n5 -9999 -9999\n"))
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.BearerToken = "s3cret" })

	w := do(s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodPost, "/v1/grid", squareBody, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	for _, token := range []string{"nope", "s3cre", "s3cret2", "S3CRET", ""} {
		w = do(s, http.MethodPost, "/v1/grid", squareBody, http.Header{"Authorization": {"Bearer " + token}})
		assert.Equal(t, http.StatusUnauthorized, w.Code, token)
	}
	w = do(s, http.MethodPost, "/v1/grid", squareBody, http.Header{"Authorization": {"Bearer s3cret"}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("run: %w", kriging.ErrSingularSystem)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(&http.MaxBytesError{Limit: 1}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
