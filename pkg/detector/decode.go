package detector

import (
	"fmt"

	"DetectOverlay/internal/entity"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

// DecodeDetection parses an image detection body.
func DecodeDetection(resp *Response) (*entity.DetectionResult, error) {
	var result entity.DetectionResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if result.Detections == nil {
		result.Detections = []entity.Detection{}
	}
	return &result, nil
}

func DecodeVerify(resp *Response) (*entity.VerifyResult, error) {
	var result entity.VerifyResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &result, nil
}
