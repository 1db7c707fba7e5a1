package attempt

import (
	"time"

	"github.com/google/uuid"

	"goattempt/util"
)

// Observer receives progress events from a session.  Calls are made on
// the session goroutine, in order, and must not block.
type Observer interface {
	SessionStarted(id uuid.UUID, endpoint string)
	AttemptStarted(rec Record)
	AttemptFinished(rec Record)
	SessionFinished(res Result)
}

// Pacer spaces attempts out.  Delay is asked after the decision to
// continue following attempt n; a non-positive delay retries at once.
type Pacer interface {
	Delay(n int) time.Duration
}

// Option configures a session.
type Option func(*options)

type options struct {
	logger   *util.Logger
	observer Observer
	pacer    Pacer
}

// WithLogger logs session progress to l.
func WithLogger(l *util.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver reports session progress to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithPacer pauses between attempts as p dictates.  The pause is
// aborted by external cancellation like any other wait.
func WithPacer(p Pacer) Option {
	return func(o *options) {
		o.pacer = p
	}
}

func newOptions(opts []Option) options {
	o := options{observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type nopObserver struct{}

func (nopObserver) SessionStarted(uuid.UUID, string) {}
func (nopObserver) AttemptStarted(Record)            {}
func (nopObserver) AttemptFinished(Record)           {}
func (nopObserver) SessionFinished(Result)           {}
