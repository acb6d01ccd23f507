package detector

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestDecodeDetection(t *testing.T) {
	body := `{
		"image_width": 800,
		"image_height": 600,
		"filename": "car.jpg",
		"car_count": 1,
		"detections": [
			{"bbox": {"x1": 100, "y1": 100, "x2": 300, "y2": 300}, "confidence": 0.92, "class_id": 2, "class_name": "car"}
		]
	}`

	res, err := DecodeDetection(&Response{Body: []byte(body)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.ImageWidth, test.ShouldEqual, 800)
	test.That(t, res.ImageHeight, test.ShouldEqual, 600)
	test.That(t, res.Detections, test.ShouldHaveLength, 1)
	test.That(t, res.Detections[0].BBox.X2, test.ShouldEqual, 300.0)
	test.That(t, res.Detections[0].Confidence, test.ShouldEqual, 0.92)
	test.That(t, res.Detections[0].ClassName, test.ShouldEqual, "car")
}

func TestDecodeDetectionWithoutDetections(t *testing.T) {
	res, err := DecodeDetection(&Response{Body: []byte(`{"image_width": 10, "image_height": 10}`)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Detections, test.ShouldNotBeNil)
	test.That(t, res.Detections, test.ShouldBeEmpty)
}

func TestDecodeDetectionRejectsBadPayloads(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"image_width": -1, "image_height": 10, "detections": []}`,
		`{"image_width": 10, "image_height": 10, "detections": [{"bbox": {}, "confidence": 1.5}]}`,
	} {
		_, err := DecodeDetection(&Response{Body: []byte(body)})
		test.That(t, errors.Is(err, ErrInvalidPayload), test.ShouldBeTrue)
	}
}

func TestDecodeVerify(t *testing.T) {
	body := `{"is_car": true, "status": "approved", "confidence": 0.81, "detections_count": 2, "confidence_threshold": 0.5, "message": "Car detected with confidence 0.81"}`

	res, err := DecodeVerify(&Response{Body: []byte(body)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.IsCar, test.ShouldBeTrue)
	test.That(t, res.Status, test.ShouldEqual, "approved")
	test.That(t, res.DetectionsCount, test.ShouldEqual, 2)

	_, err = DecodeVerify(&Response{Body: []byte(`{"status": "maybe"}`)})
	test.That(t, errors.Is(err, ErrInvalidPayload), test.ShouldBeTrue)
}
