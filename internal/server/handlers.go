package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	kriging "github.com/flywave/go-okgrid"
)

type samplesRequest struct {
	Samples []kriging.SamplePoint `json:"samples" binding:"required"`
	Config  kriging.Config        `json:"config"`
}

type binRequest struct {
	samplesRequest
	TieBreak string `json:"tieBreak"`
}

type fitResponse struct {
	Model       kriging.Model `json:"model"`
	Residual    float64       `json:"residual"`
	Iterations  int           `json:"iterations"`
	Evaluations int           `json:"evaluations"`
	Status      string        `json:"status"`
}

func newFitResponse(fit *kriging.FitResult) *fitResponse {
	if fit == nil {
		return nil
	}
	return &fitResponse{
		Model:       fit.Model,
		Residual:    fit.Residual,
		Iterations:  fit.Iterations,
		Evaluations: fit.Evaluations,
		Status:      fit.Status.String(),
	}
}

var badRequestErrors = []error{
	kriging.ErrInsufficientData,
	kriging.ErrInsufficientBins,
	kriging.ErrFitDidNotConverge,
	kriging.ErrSingularSystem,
	kriging.ErrNonFiniteSample,
	kriging.ErrInvalidArgument,
	kriging.ErrInvalidModel,
}

func statusFor(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		klog.ErrorS(err, "request failed", "path", c.Request.URL.Path)
	} else {
		klog.V(2).InfoS("request rejected", "path", c.Request.URL.Path, "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindRequest decodes the request over the server's kriging configuration,
// so omitted config fields keep their configured values. A request may
// lower the grid cell limit but never raise it.
func (s *Server) bindRequest(c *gin.Context, req interface{}, cfg *kriging.Config) bool {
	*cfg = s.cfg.Kriging
	if err := c.ShouldBindJSON(req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.fail(c, err)
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	if limit := s.cfg.Kriging.MaxCells; cfg.MaxCells <= 0 || cfg.MaxCells > limit {
		cfg.MaxCells = limit
	}
	return true
}

func (s *Server) bindSamples(c *gin.Context, req *samplesRequest) bool {
	return s.bindRequest(c, req, &req.Config)
}

func (s *Server) encodeOptions(c *gin.Context) (kriging.EncodeOptions, bool) {
	opts := kriging.EncodeOptions{
		Field:    kriging.Field(c.DefaultQuery("field", string(kriging.FieldValue))),
		HalfCell: s.cfg.Input.HalfCell,
	}
	if hc := c.Query("halfCell"); hc != "" {
		val, err := strconv.ParseBool(hc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid halfCell parameter"})
			return opts, false
		}
		opts.HalfCell = val
	}
	return opts, true
}

func (s *Server) writeGrid(c *gin.Context, grid *kriging.InterpolatedGrid, opts kriging.EncodeOptions) {
	var buf bytes.Buffer
	var contentType string
	var err error
	switch format := c.DefaultQuery("format", "asc"); format {
	case "asc":
		contentType = "text/plain; charset=utf-8"
		err = kriging.Encode(&buf, grid, opts)
	case "csv":
		contentType = "text/csv; charset=utf-8"
		err = kriging.WriteTable(&buf, grid)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid format parameter"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header(regularizedHdr, strconv.FormatBool(grid.Regularized))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// handleGrid kriges the posted samples and returns the grid
// POST /v1/grid?field=value|variance&format=asc|csv&halfCell=false
func (s *Server) handleGrid(c *gin.Context) {
	var req samplesRequest
	if !s.bindSamples(c, &req) {
		return
	}
	opts, ok := s.encodeOptions(c)
	if !ok {
		return
	}

	pipeline, err := kriging.NewPipeline(req.Config)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	res, err := pipeline.Run(ctx, req.Samples)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeGrid(c, res.Grid, opts)
}

// handleVariogram returns the empirical bins and the fitted model
// POST /v1/variogram
func (s *Server) handleVariogram(c *gin.Context) {
	var req samplesRequest
	if !s.bindSamples(c, &req) {
		return
	}
	pipeline, err := kriging.NewPipeline(req.Config)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	res, err := pipeline.Variogram(ctx, req.Samples)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bins":  res.Bins,
		"pairs": kriging.PairCount(res.Bins),
		"fit":   newFitResponse(res.Fit),
	})
}

// handleBin drops the samples into grid cells without interpolation
// POST /v1/bin?format=asc|csv
func (s *Server) handleBin(c *gin.Context) {
	var req binRequest
	if !s.bindRequest(c, &req, &req.Config) {
		return
	}
	opts, ok := s.encodeOptions(c)
	if !ok {
		return
	}
	tie, err := kriging.ParseTieBreak(req.TieBreak)
	if err != nil {
		s.fail(c, err)
		return
	}
	spec, err := kriging.GridSpecForLimit(req.Samples, req.Config.CellSize, req.Config.MaxCells)
	if err != nil {
		s.fail(c, err)
		return
	}
	grid, err := kriging.BinToGrid(req.Samples, spec, req.Config.NoData, tie)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeGrid(c, grid, opts)
}
