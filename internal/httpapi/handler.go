// Package httpapi exposes the analysis service over HTTP and WebSocket.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/chessfen/internal/pipeline"
	"github.com/park285/chessfen/internal/service/analysis"
	"github.com/park285/chessfen/pkg/fendto"
)

// multipartOverhead is allowed on top of the image limit for form boundaries and fields.
const multipartOverhead = 64 << 10

// Analyzer is the subset of the analysis service the handlers need.
type Analyzer interface {
	Analyze(ctx context.Context, up analysis.Upload) (*fendto.AnalysisResponse, error)
	SetActiveColor(req fendto.ActiveColorRequest) (*fendto.ActiveColorResponse, error)
	Render(ctx context.Context, req fendto.RenderRequest) ([]byte, error)
	Health(ctx context.Context) fendto.HealthResponse
	DomainError(err error) fendto.DomainError
	MaxUploadBytes() int64
}

type Handler struct {
	svc    Analyzer
	logger *zap.Logger
}

func NewHandler(svc Analyzer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Analyze accepts multipart/form-data with an "image" file and optional
// "corners" and "orientation" fields, or a raw image body with the same hints
// as query parameters.
func (h *Handler) Analyze(c *gin.Context) {
	limit := h.svc.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	up, err := h.readUpload(c, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	up.RequestID = c.GetString(requestIDKey)
	resp, err := h.svc.Analyze(c.Request.Context(), up)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) readUpload(c *gin.Context, limit int64) (analysis.Upload, error) {
	ct := strings.ToLower(c.ContentType())
	if strings.HasPrefix(ct, "image/") {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
		if err != nil {
			return analysis.Upload{}, h.uploadError(err)
		}
		return analysis.Upload{
			Data:        data,
			Corners:     c.Query("corners"),
			Orientation: c.Query("orientation"),
		}, nil
	}

	file, err := c.FormFile("image")
	if err != nil {
		return analysis.Upload{}, h.uploadError(err)
	}
	f, err := file.Open()
	if err != nil {
		return analysis.Upload{}, h.uploadError(err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			h.logger.Warn("upload_close_failed", zap.Error(err))
		}
	}()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return analysis.Upload{}, h.uploadError(err)
	}
	return analysis.Upload{
		Data:        data,
		Filename:    file.Filename,
		Corners:     c.PostForm("corners"),
		Orientation: c.PostForm("orientation"),
	}, nil
}

func (h *Handler) uploadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fendto.DomainError{Code: analysis.CodeTooLarge, Message: "image is too large"}
	}
	if errors.Is(err, http.ErrMissingFile) {
		return fendto.DomainError{Code: analysis.CodeBadRequest, Message: `multipart field "image" is required`}
	}
	return fendto.DomainError{Code: analysis.CodeBadRequest, Message: err.Error()}
}

func (h *Handler) ActiveColor(c *gin.Context) {
	var req fendto.ActiveColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fendto.DomainError{Code: analysis.CodeBadRequest, Message: "invalid JSON body"})
		return
	}
	resp, err := h.svc.SetActiveColor(req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Render(c *gin.Context) {
	var req fendto.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fendto.DomainError{Code: analysis.CodeBadRequest, Message: "invalid JSON body"})
		return
	}
	png, err := h.svc.Render(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) Health(c *gin.Context) {
	resp := h.svc.Health(c.Request.Context())
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (h *Handler) fail(c *gin.Context, err error) {
	de := h.svc.DomainError(err)
	status := StatusFor(de.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request_failed", zap.String("code", de.Code), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, fendto.ErrorResponse{Error: de, RequestID: c.GetString(requestIDKey)})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case analysis.CodeBadRequest:
		return http.StatusBadRequest
	case analysis.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case analysis.CodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	case string(pipeline.KindInvalidImage), string(pipeline.KindBoardNotFound), string(pipeline.KindPartition):
		return http.StatusUnprocessableEntity
	case string(pipeline.KindClassificationUnavailable):
		return http.StatusServiceUnavailable
	case string(pipeline.KindTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
