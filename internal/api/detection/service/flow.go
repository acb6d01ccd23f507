package detectionService

import (
	"context"
	"sync"
	"time"

	"DetectOverlay/internal/entity"
	"DetectOverlay/pkg/detector"
	"DetectOverlay/pkg/log"
	"github.com/sirupsen/logrus"
)

// flowRunner is the Idle -> Submitting -> {success, failure} -> Idle machine
// shared by every flow. Only the newest run of a flow may settle; starting a
// run cancels the one still in flight.
type flowRunner struct {
	name entity.FlowName
	bus  *StatusBus
	log  *logrus.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelCauseFunc
	current entity.FlowEvent
}

func newFlowRunner(name entity.FlowName, bus *StatusBus, logger *logrus.Logger) *flowRunner {
	return &flowRunner{
		name: name,
		bus:  bus,
		log:  logger,
		current: entity.FlowEvent{
			Flow:  name,
			State: entity.FlowIdle,
			At:    time.Now(),
		},
	}
}

func (f *flowRunner) Current() entity.FlowEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// begin enters Submitting. onEnter runs under the flow lock before the
// transition is published.
func (f *flowRunner) begin(ctx context.Context, message string, onEnter func()) (context.Context, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.log.WithFields(log.Fields{
			"flow": f.name,
			"gen":  f.gen,
		}).Info("Cancelling superseded submission")
		f.cancel(detector.ErrSuperseded)
	}

	f.gen++
	runCtx, cancel := context.WithCancelCause(ctx)
	f.cancel = cancel

	if onEnter != nil {
		onEnter()
	}
	f.transitionLocked(entity.FlowSubmitting, message, true)

	return runCtx, f.gen
}

// settle applies fn if gen is still the newest run and reports whether it did.
func (f *flowRunner) settle(gen uint64, fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.gen {
		return false
	}
	if f.cancel != nil {
		f.cancel(nil)
		f.cancel = nil
	}
	fn()
	return true
}

// reject handles failures caught before anything was submitted.
func (f *flowRunner) reject(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.transitionLocked(entity.FlowFailure, message, false)
	f.transitionLocked(entity.FlowIdle, message, false)
}

func (f *flowRunner) transitionLocked(state entity.FlowState, message string, busy bool) {
	f.current = entity.FlowEvent{
		Flow:    f.name,
		State:   state,
		Message: message,
		Busy:    busy,
		At:      time.Now(),
	}

	f.log.WithFields(log.Fields{
		"flow":    f.name,
		"state":   state,
		"message": message,
	}).Debug("Flow transition")

	f.bus.Publish(f.current)
}

// StatusBus fans flow events out to subscribers. Subscribers get a small
// buffer; events beyond it are dropped for that subscriber.
type StatusBus struct {
	mu     sync.Mutex
	subs   map[int]chan entity.FlowEvent
	nextID int
}

const statusBuffer = 32

func NewStatusBus() *StatusBus {
	return &StatusBus{subs: make(map[int]chan entity.FlowEvent)}
}

func (b *StatusBus) Subscribe() (<-chan entity.FlowEvent, func()) {
	ch := make(chan entity.FlowEvent, statusBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *StatusBus) Publish(ev entity.FlowEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
