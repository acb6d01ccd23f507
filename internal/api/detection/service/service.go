package detectionService

import (
	"context"

	"DetectOverlay/internal/api/detection"
	"DetectOverlay/internal/entity"
	"DetectOverlay/pkg/detector"
	"DetectOverlay/pkg/overlay"
	"DetectOverlay/pkg/playback"
	"DetectOverlay/pkg/session"
	"github.com/sirupsen/logrus"
)

type IDetectionService interface {
	DetectImage(ctx context.Context, media detector.Media) detection.Outcome
	TrackVideo(ctx context.Context, media detector.Media) detection.Outcome
	VerifyCar(ctx context.Context, media detector.Media, threshold float64) detection.Outcome

	Resize(width, height int)
	RenderOverlay(ctx context.Context) (*session.Frame, error)
	CompositeOverlay(ctx context.Context) ([]byte, error)
	Result() *entity.DetectionResult
	Playback(id string) (*playback.Blob, error)

	State(flow entity.FlowName) entity.FlowEvent
	SubscribeEvents() (<-chan entity.FlowEvent, func())
	SubscribeFrames() (<-chan session.Frame, func())
}

type detectionService struct {
	log        *logrus.Logger
	endpoint   string
	controller detector.IController
	session    *session.Session
	display    *overlay.Display
	store      *playback.Store
	player     *playback.Player
	bus        *StatusBus

	imageFlow  *flowRunner
	videoFlow  *flowRunner
	verifyFlow *flowRunner

	// background renders outlive the request that scheduled them
	background context.Context
}

type Deps struct {
	Log        *logrus.Logger
	Endpoint   string
	Controller detector.IController
	Session    *session.Session
	Display    *overlay.Display
	Store      *playback.Store
	Background context.Context
}

func NewDetectionService(deps Deps) IDetectionService {
	bg := deps.Background
	if bg == nil {
		bg = context.Background()
	}

	bus := NewStatusBus()

	return &detectionService{
		log:        deps.Log,
		endpoint:   deps.Endpoint,
		controller: deps.Controller,
		session:    deps.Session,
		display:    deps.Display,
		store:      deps.Store,
		player:     playback.NewPlayer(deps.Store),
		bus:        bus,
		imageFlow:  newFlowRunner(entity.ImageFlow, bus, deps.Log),
		videoFlow:  newFlowRunner(entity.VideoFlow, bus, deps.Log),
		verifyFlow: newFlowRunner(entity.VerifyFlow, bus, deps.Log),
		background: bg,
	}
}

func (s *detectionService) State(flow entity.FlowName) entity.FlowEvent {
	switch flow {
	case entity.VideoFlow:
		return s.videoFlow.Current()
	case entity.VerifyFlow:
		return s.verifyFlow.Current()
	default:
		return s.imageFlow.Current()
	}
}

func (s *detectionService) SubscribeEvents() (<-chan entity.FlowEvent, func()) {
	return s.bus.Subscribe()
}

func (s *detectionService) SubscribeFrames() (<-chan session.Frame, func()) {
	return s.session.Subscribe()
}
