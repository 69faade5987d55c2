package arbiter

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Meander-Cloud/go-schedule/scheduler"
	"go.uber.org/zap"

	"github.com/Meander-Cloud/go-uplink/config"
	g "github.com/Meander-Cloud/go-uplink/group"
)

var (
	ErrShutdown  = errors.New("arbiter shut down")
	ErrQueueFull = errors.New("arbiter event channel full")
)

type event struct {
	f  func()
	t0 time.Time // dispatch time
}

func newEvent() *event {
	return &event{}
}

// scheduler goroutine
func (e *event) reset() {
	e.f = nil
	e.t0 = time.Time{}
}

type Options struct {
	EventChannelLength uint16
	LogPrefix          string
	LogDebug           bool
	Logger             *zap.Logger
}

// Arbiter runs every dispatched functor on one goroutine, in dispatch order.
// State owned by that goroutine needs no further locking.
type Arbiter struct {
	options    *Options
	log        *zap.Logger
	s          *scheduler.Scheduler[g.Group]
	eventpl    sync.Pool
	eventch    chan *event
	shutdownch chan struct{}
	inShutdown atomic.Bool
}

func NewArbiter(options *Options) *Arbiter {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(options.LogPrefix)

	var eventChannelLength uint16
	if options.EventChannelLength == 0 {
		eventChannelLength = config.EventChannelLength
	} else {
		eventChannelLength = options.EventChannelLength
	}

	a := &Arbiter{
		options: options,
		log:     logger,
		s: scheduler.NewScheduler[g.Group](
			&scheduler.Options{
				LogPrefix: fmt.Sprintf("%s-Scheduler", options.LogPrefix),
				LogDebug:  options.LogDebug,
			},
		),
		eventpl: sync.Pool{
			New: func() any {
				return newEvent()
			},
		},
		eventch:    make(chan *event, eventChannelLength),
		shutdownch: make(chan struct{}),
	}

	// add eventch
	a.s.ProcessAsync(
		&scheduler.ScheduleAsyncEvent[g.Group]{
			AsyncVariant: scheduler.NewAsyncVariant(
				false,
				nil,
				a.eventch,
				func(_ *scheduler.Scheduler[g.Group], _ *scheduler.AsyncVariant[g.Group], recv interface{}) {
					a.handle(recv)
				},
				func(_ *scheduler.Scheduler[g.Group], v *scheduler.AsyncVariant[g.Group]) {
					a.log.Info("eventch released", zap.Uint64("selectCount", uint64(v.SelectCount)))
				},
			),
		},
	)

	// ownership of internal state is transferred to scheduler goroutine
	a.s.RunAsync()

	return a
}

func (a *Arbiter) Shutdown() {
	if a.inShutdown.Swap(true) {
		return
	}
	close(a.shutdownch)
	a.s.Shutdown() // wait
}

func (a *Arbiter) Scheduler() *scheduler.Scheduler[g.Group] {
	return a.s
}

func (a *Arbiter) getEvent() *event {
	evtAny := a.eventpl.Get()
	evt, ok := evtAny.(*event)
	if !ok {
		err := fmt.Errorf("failed to cast event, evtAny=%#v", evtAny)
		a.log.Error("event pool corrupt", zap.Error(err))
		panic(err)
	}
	return evt
}

func (a *Arbiter) returnEvent(evt *event) {
	// recycle event
	evt.reset()
	a.eventpl.Put(evt)
}

// scheduler goroutine
func (a *Arbiter) handle(recv interface{}) {
	evt, ok := recv.(*event)
	if !ok {
		a.log.Error("failed to cast event", zap.Any("recv", recv))
		return
	}
	defer a.returnEvent(evt)

	t1 := time.Now().UTC()

	func() {
		defer func() {
			rec := recover()
			if rec != nil {
				a.log.Error("functor recovered from panic", zap.Any("panic", rec))
			}
		}()
		evt.f()
	}()

	if a.options.LogDebug {
		t2 := time.Now().UTC()

		// log event lifecycle
		a.log.Debug(
			"event",
			zap.Int64("goQueueWaitUs", t1.Sub(evt.t0).Microseconds()),
			zap.Int64("evtFuncElapsedUs", t2.Sub(t1).Microseconds()),
		)
	}
}

// any goroutine, never blocks
func (a *Arbiter) Dispatch(f func()) error {
	if a.inShutdown.Load() {
		return ErrShutdown
	}

	evt := a.getEvent()
	evt.f = f
	evt.t0 = time.Now().UTC()

	select {
	case a.eventch <- evt:
	default:
		a.log.Error("failed to push to eventch", zap.Int("eventChannelLength", cap(a.eventch)))

		a.returnEvent(evt)
		return ErrQueueFull
	}

	return nil
}

// DispatchWait blocks until f is queued or the arbiter shuts down. Used by
// background goroutines whose completion must not be lost.
func (a *Arbiter) DispatchWait(f func()) error {
	if a.inShutdown.Load() {
		return ErrShutdown
	}

	evt := a.getEvent()
	evt.f = f
	evt.t0 = time.Now().UTC()

	select {
	case a.eventch <- evt:
		return nil
	case <-a.shutdownch:
		a.returnEvent(evt)
		return ErrShutdown
	}
}

// Call runs f on the arbiter goroutine and waits for it to finish. Must not
// be invoked from the arbiter goroutine itself.
func (a *Arbiter) Call(f func()) error {
	donech := make(chan struct{})
	err := a.DispatchWait(
		func() {
			defer close(donech)
			f()
		},
	)
	if err != nil {
		return err
	}

	select {
	case <-donech:
		return nil
	case <-a.shutdownch:
		return ErrShutdown
	}
}
