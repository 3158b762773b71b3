package model

// Metadata describes an exported ONNX model: tensor shapes, names and the
// class table indexed by class id.
type Metadata struct {
	InputShape   []int64  `json:"input_shape"`
	OutputShape  []int64  `json:"output_shape"`
	Classes      []string `json:"classes"`
	ImageSize    int      `json:"image_size"`
	InputName    string   `json:"input_name"`
	OutputName   string   `json:"output_name"`
	ApplySoftmax bool     `json:"apply_softmax"`
}

// Box is one detected region in original image pixels.
type Box struct {
	X1, Y1, X2, Y2 float64
	Confidence     float32
	ClassID        int
}

// Classification is the classifier output for one image.
type Classification struct {
	Top1     int
	Top1Conf float32
}
