package predict

// ImageSize is the size of the image the models saw, after orientation.
type ImageSize struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// Response is the success payload of POST /predict.
type Response struct {
	Status      string      `json:"status"`
	ImageSize   ImageSize   `json:"image_size"`
	Severity    Severity    `json:"severity"`
	Detections  []Detection `json:"detections"`
	CountsClass ClassCounts `json:"counts_class"`
}

// ErrorResponse is the payload for every failed request.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Assemble builds the success payload. Nil slices and maps are replaced so
// they encode as [] and {}.
func Assemble(width, height int, severity Severity, detections []Detection, counts ClassCounts) *Response {
	if detections == nil {
		detections = []Detection{}
	}
	if counts == nil {
		counts = ClassCounts{}
	}
	return &Response{
		Status:      "success",
		ImageSize:   ImageSize{Height: height, Width: width},
		Severity:    severity,
		Detections:  detections,
		CountsClass: counts,
	}
}

// NewErrorResponse builds the error payload for err.
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{Status: "error", Error: err.Error()}
}
