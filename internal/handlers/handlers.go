package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/acne-api/internal/logger"
	"github.com/Brownie44l1/acne-api/internal/predict"
)

const imageField = "image"

type Handler struct {
	service        *predict.Service
	logger         *logger.Logger
	maxUploadBytes int64
}

func NewHandler(service *predict.Service, log *logger.Logger, maxUploadBytes int64) *Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Handler{
		service:        service,
		logger:         log,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Predict handles POST /predict with a multipart "image" field.
func (h *Handler) Predict(c *gin.Context) {
	log := h.logger.With("request_id", requestIDFrom(c))
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	header, err := c.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, log, &predict.ValidationError{Msg: fmt.Sprintf("image exceeds %d bytes", tooLarge.Limit)})
			return
		}
		h.fail(c, log, &predict.ValidationError{Msg: "no image file provided, use 'image' as the form field name"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.fail(c, log, &predict.ValidationError{Msg: "failed to open uploaded image"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(c, log, &predict.ValidationError{Msg: "failed to read uploaded image"})
		return
	}

	log.Debug("Received image",
		"filename", header.Filename,
		"size", header.Size,
		"content_type", header.Header.Get("Content-Type"),
	)

	resp, err := h.service.Predict(c.Request.Context(), data)
	if err != nil {
		h.fail(c, log, err)
		return
	}

	log.Info("Prediction served",
		"detections", len(resp.Detections),
		"severity", resp.Severity.Label,
	)
	c.JSON(http.StatusOK, resp)
}

// fail writes the error payload with the status for err's kind.
func (h *Handler) fail(c *gin.Context, log *logger.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("Prediction failed", "error", err)
	} else {
		log.Warn("Rejected upload", "error", err)
	}
	c.JSON(status, predict.NewErrorResponse(err))
}

func statusFor(err error) int {
	var verr *predict.ValidationError
	var derr *predict.DecodeError
	switch {
	case errors.As(err, &verr), errors.As(err, &derr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
