package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/acne-api/internal/logger"
	"github.com/Brownie44l1/acne-api/internal/model"
	"github.com/Brownie44l1/acne-api/internal/predict"
	"github.com/Brownie44l1/acne-api/internal/testutil"
)

type fakeDetector struct {
	boxes []model.Box
	err   error
	panic bool
}

func (d *fakeDetector) Names() []string { return []string{"blackhead", "papule"} }

func (d *fakeDetector) Detect(context.Context, image.Image, float32) ([]model.Box, error) {
	if d.panic {
		panic("tensor shape mismatch")
	}
	return d.boxes, d.err
}

type fakeClassifier struct{}

func (fakeClassifier) Names() []string { return []string{"mild", "moderate"} }

func (fakeClassifier) Classify(context.Context, image.Image) (*model.Classification, error) {
	return &model.Classification{Top1: 1, Top1Conf: 0.66666}, nil
}

func setupTestRouter(t *testing.T, det *fakeDetector, maxUpload int64) *gin.Engine {
	t.Helper()
	log := logger.NewNopLogger()
	svc := predict.NewService(det, fakeClassifier{}, predict.Options{Confidence: predict.DefaultConfidence}, log)
	return NewRouter(NewHandler(svc, log, maxUpload), log, gin.TestMode)
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, "face.jpg")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func doPredict(t *testing.T, r http.Handler, field string, data []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	body, contentType := multipartBody(t, field, data)
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	return w, payload
}

func TestPredict_Success(t *testing.T) {
	det := &fakeDetector{boxes: []model.Box{
		{X1: 10.2, Y1: 20.7, X2: 30.5, Y2: 40, Confidence: 0.81234, ClassID: 1},
		{X1: 1, Y1: 1, X2: 2, Y2: 2, Confidence: 0.3, ClassID: 1},
	}}
	r := setupTestRouter(t, det, 1<<20)

	w, payload := doPredict(t, r, "image", testutil.JPEG(t, testutil.Quadrants(640, 480)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, map[string]interface{}{"height": 480.0, "width": 640.0}, payload["image_size"])
	assert.Equal(t, map[string]interface{}{"label": "moderate", "confidence": 0.6667}, payload["severity"])
	assert.Equal(t, map[string]interface{}{"papule": 2.0}, payload["counts_class"])

	detections := payload["detections"].([]interface{})
	require.Len(t, detections, 2)
	assert.Equal(t, map[string]interface{}{
		"box":        []interface{}{10.0, 21.0, 30.0, 40.0},
		"label":      "papule",
		"confidence": 0.8123,
	}, detections[0])
}

func TestPredict_NoDetectionsEncodesEmpty(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 1<<20)

	w, _ := doPredict(t, r, "image", testutil.PNG(t, testutil.Quadrants(16, 16)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"detections":[]`)
	assert.Contains(t, w.Body.String(), `"counts_class":{}`)
}

func TestPredict_MissingImageField(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 1<<20)

	w, payload := doPredict(t, r, "file", testutil.PNG(t, testutil.Quadrants(8, 8)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["error"], "image")
}

func TestPredict_NotMultipart(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"image":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestPredict_MalformedImageIsBadRequest(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 1<<20)

	for _, data := range [][]byte{
		[]byte("this is not an image"),
		testutil.JPEG(t, testutil.Quadrants(32, 32))[:40],
		{},
	} {
		w, payload := doPredict(t, r, "image", data)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "error", payload["status"])
		assert.NotEmpty(t, payload["error"])
	}
}

func TestPredict_OversizedDimensionsIsBadRequest(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 1<<20)

	w, payload := doPredict(t, r, "image", testutil.PNGHeader(t, 20000, 20000))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["error"], "image too large")
}

func TestPredict_LogsCarryRequestID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	log, err := logger.New(logger.Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	svc := predict.NewService(&fakeDetector{}, fakeClassifier{}, predict.Options{Confidence: predict.DefaultConfidence}, log)
	r := NewRouter(NewHandler(svc, log, 1<<20), log, gin.TestMode)

	body, contentType := multipartBody(t, "file", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	log.Sync()

	require.Equal(t, http.StatusBadRequest, w.Code)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Rejected upload","request_id":"req-42"`)
}

func TestPredict_InferenceFailureIsServerError(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{err: errors.New("onnxruntime: invalid input")}, 1<<20)

	w, payload := doPredict(t, r, "image", testutil.PNG(t, testutil.Quadrants(8, 8)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error", payload["status"])
	assert.Equal(t, "detection inference failed: onnxruntime: invalid input", payload["error"])
}

func TestPredict_PanicIsServerError(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{panic: true}, 1<<20)

	w, payload := doPredict(t, r, "image", testutil.PNG(t, testutil.Quadrants(8, 8)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error", payload["status"])
	assert.Equal(t, "tensor shape mismatch", payload["error"])
}

func TestPredict_UploadTooLarge(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 512)

	w, payload := doPredict(t, r, "image", bytes.Repeat([]byte{0xff}, 4096))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", payload["status"])
}

func TestPredict_WrongMethod(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"status":"error","error":"method not allowed"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict/image", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	r := setupTestRouter(t, &fakeDetector{}, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/predict", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&predict.ValidationError{Msg: "x"}))
	assert.Equal(t, http.StatusBadRequest, statusFor(&predict.DecodeError{Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&predict.InferenceError{Stage: "severity", Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}
