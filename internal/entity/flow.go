package entity

import "time"

type FlowName string

const (
	ImageFlow  FlowName = "image"
	VideoFlow  FlowName = "video"
	VerifyFlow FlowName = "verify"
)

type FlowState string

const (
	FlowIdle       FlowState = "idle"
	FlowSubmitting FlowState = "submitting"
	FlowRendering  FlowState = "rendering"
	FlowPlayable   FlowState = "playable"
	FlowFailure    FlowState = "failure"
)

type FlowEvent struct {
	Flow    FlowName  `json:"flow"`
	State   FlowState `json:"state"`
	Message string    `json:"message,omitempty"`
	Busy    bool      `json:"busy"`
	At      time.Time `json:"at"`
}
