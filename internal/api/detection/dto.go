package detection

import "DetectOverlay/internal/entity"

// Outcome is what a flow run leaves behind. The flow itself is back in idle by
// the time an Outcome is returned; State is the terminal state it passed
// through.
type Outcome struct {
	Flow    entity.FlowName
	State   entity.FlowState
	Message string
	Err     error

	Result *entity.DetectionResult
	Verify *entity.VerifyResult
	Source string

	// Rendered yields the result of the deferred overlay render, when one was
	// scheduled.
	Rendered <-chan error
}

type ImageDetectionResponse struct {
	State      entity.FlowState        `json:"state"`
	Message    string                  `json:"message"`
	Detections int                     `json:"detections"`
	Result     *entity.DetectionResult `json:"result,omitempty"`
}

type VideoTrackResponse struct {
	State   entity.FlowState `json:"state"`
	Message string           `json:"message"`
	Source  string           `json:"source,omitempty"`
}

type VerifyResponse struct {
	State   entity.FlowState     `json:"state"`
	Message string               `json:"message"`
	Data    *entity.VerifyResult `json:"data,omitempty"`
}

type FlowFailureResponse struct {
	State   entity.FlowState `json:"state"`
	Message string           `json:"message"`
	Error   string           `json:"error"`
}

type OverlayRequest struct {
	Width     int  `query:"width" validate:"gte=0,lte=16384"`
	Height    int  `query:"height" validate:"gte=0,lte=16384"`
	Composite bool `query:"composite"`
}

type VerifyRequest struct {
	ConfidenceThreshold float64 `form:"confidence_threshold" validate:"gte=0,lte=1"`
}

const (
	ViewerResize = "resize"
	ViewerRender = "render"
)

// ViewerMessage is sent by a connected viewer over the websocket.
type ViewerMessage struct {
	Type   string `json:"type" validate:"required,oneof=resize render"`
	Width  int    `json:"width" validate:"gte=0,lte=16384"`
	Height int    `json:"height" validate:"gte=0,lte=16384"`
}

// ViewerEvent is pushed to viewers as a JSON text message. Rendered frames go
// out separately as binary PNG messages.
type ViewerEvent struct {
	Type  string            `json:"type"`
	Event *entity.FlowEvent `json:"event,omitempty"`
	Boxes []ViewerBox       `json:"boxes,omitempty"`
	Size  *ViewerFrameSize  `json:"size,omitempty"`
	Error string            `json:"error,omitempty"`
}

type ViewerBox struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Label string  `json:"label"`
}

type ViewerFrameSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
