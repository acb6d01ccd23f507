package entity

type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

type Detection struct {
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	ClassID    int     `json:"class_id,omitempty"`
	ClassName  string  `json:"class_name,omitempty"`
}

// DetectionResult is expressed in the pixel space of the media as processed by
// the detection service, not in on-screen pixels.
type DetectionResult struct {
	ImageWidth  int         `json:"image_width" validate:"gte=0"`
	ImageHeight int         `json:"image_height" validate:"gte=0"`
	Detections  []Detection `json:"detections" validate:"dive"`
	Filename    string      `json:"filename,omitempty"`
	Timestamp   int64       `json:"timestamp,omitempty"`
	CarCount    int         `json:"car_count,omitempty"`
}

type VerifyResult struct {
	IsCar               bool    `json:"is_car"`
	Status              string  `json:"status" validate:"oneof=approved failed"`
	Confidence          float64 `json:"confidence" validate:"gte=0,lte=1"`
	DetectionsCount     int     `json:"detections_count" validate:"gte=0"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	Message             string  `json:"message"`
}
