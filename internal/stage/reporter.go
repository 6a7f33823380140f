package stage

import (
	"context"
	"sort"

	"github.com/bft-labs/muxship/internal/domain"
	"github.com/bft-labs/muxship/internal/frame"
	"github.com/bft-labs/muxship/internal/mailbox"
	"github.com/bft-labs/muxship/pkg/log"
)

// Request is one unit of work submitted by a worker.
// ID is chosen by the worker and handed back in its callbacks.
type Request struct {
	ID     string
	Body   []byte
	Worker Worker
}

// Worker originates requests and learns their fate. Callbacks run on the
// reporter's goroutine and must return quickly.
type Worker interface {
	// OnDelivered is called once the request's payload was written to the socket.
	OnDelivered(req Request)

	// OnFailed is called when the request can not be delivered.
	OnFailed(req Request, err error)
}

// ReporterConfig configures one reporter.
type ReporterConfig struct {
	// ID is the key of the reporter in the registry.
	ID uint8

	// FirstStream and Streams define the contiguous range of stream ids the
	// reporter owns. Streams also bounds the number of in-flight payloads.
	FirstStream domain.Stream
	Streams     int

	// MaxAttempts bounds how often a request is handed to a sender.
	// Zero or less means retry forever.
	MaxAttempts int
}

type tracked struct {
	req      Request
	seq      uint64
	attempts int
}

// Reporter owns a range of streams. It frames worker requests, hands them to
// the sender currently serving the session, and applies the retry policy
// when a checkpoint reports the connection gone.
type Reporter struct {
	cfg ReporterConfig
	tx  *ReporterTx
	rx  *ReporterRx
	log log.Logger

	// Fields below are only touched by the Run goroutine.
	sender   *SenderTx
	session  domain.SessionID
	free     []domain.Stream
	inflight map[domain.Stream]*tracked
	queue    []*tracked
	seq      uint64
}

// NewReporter creates a reporter. Call Run to start it.
func NewReporter(cfg ReporterConfig, logger log.Logger) *Reporter {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	tx, rx := mailbox.New[ReporterEvent]()

	free := make([]domain.Stream, 0, cfg.Streams)
	// Lowest stream id on top of the stack.
	for i := cfg.Streams - 1; i >= 0; i-- {
		free = append(free, cfg.FirstStream+domain.Stream(i))
	}

	return &Reporter{
		cfg:      cfg,
		tx:       tx,
		rx:       rx,
		log:      logger.With(log.String("component", "reporter"), log.Reporter(cfg.ID)),
		free:     free,
		inflight: make(map[domain.Stream]*tracked, cfg.Streams),
	}
}

// ID returns the registry key of the reporter.
func (r *Reporter) ID() uint8 {
	return r.cfg.ID
}

// Handle returns the reporter's transmit handle for the registry.
func (r *Reporter) Handle() *ReporterTx {
	return r.tx
}

// Submit queues a request. It never blocks.
func (r *Reporter) Submit(req Request) error {
	return r.tx.Send(submitEvent{req: req})
}

// Run processes events until ctx is done. Requests still unresolved at that
// point are left to the worker; no callback is made for them.
func (r *Reporter) Run(ctx context.Context) {
	for {
		ev, ok := r.rx.Recv(ctx)
		if !ok {
			break
		}

		switch e := ev.(type) {
		case submitEvent:
			r.seq++
			r.queue = append(r.queue, &tracked{req: e.req, seq: r.seq})
			r.flush()
		case StatusEvent:
			r.handleStatus(e.Status)
		case SessionEvent:
			r.handleSession(e.Session)
		}
	}

	r.releaseSender()
	if n := len(r.inflight) + len(r.queue); n > 0 {
		r.log.Info("reporter stopped with unresolved requests", log.Int("count", n))
	}
}

func (r *Reporter) handleStatus(st domain.StreamStatus) {
	t, ok := r.inflight[st.Stream]
	if !ok {
		r.log.Warn("status for idle stream", log.Stream(uint16(st.Stream)))
		return
	}
	delete(r.inflight, st.Stream)
	r.free = append(r.free, st.Stream)

	if st.OK() {
		t.req.Worker.OnDelivered(t.req)
		r.flush()
		return
	}

	// The sender closes its queue right after an Err; wait for the next session.
	r.releaseSender()
	r.retry(t)
	r.sortQueue()
}

func (r *Reporter) handleSession(s Session) {
	switch s.Kind {
	case SessionNew:
		r.releaseSender()
		r.sender = s.Tx
		r.session = s.ID
		r.log.Info("sender announced", log.Session(uint64(s.ID)), log.Int("pending", len(r.queue)))
		r.flush()

	case SessionCheckPoint:
		if s.ID != r.session {
			r.log.Warn("checkpoint for foreign session",
				log.Session(uint64(s.ID)),
				log.Uint64("current", uint64(r.session)))
		}
		r.releaseSender()

		// Nothing unacknowledged was delivered.
		n := len(r.inflight)
		for stream, t := range r.inflight {
			delete(r.inflight, stream)
			r.free = append(r.free, stream)
			r.retry(t)
		}
		r.sortQueue()
		r.log.Info("checkpoint", log.Session(uint64(s.ID)),
			log.Int("undelivered", n), log.Int("pending", len(r.queue)))
	}
}

// flush hands queued requests to the sender while streams are free.
func (r *Reporter) flush() {
	for len(r.queue) > 0 && r.sender != nil && len(r.free) > 0 {
		t := r.queue[0]
		stream := r.free[len(r.free)-1]

		payload, err := frame.Encode(stream, t.req.Body)
		if err != nil {
			r.queue = r.queue[1:]
			t.req.Worker.OnFailed(t.req, err)
			continue
		}

		ev := Event{Stream: stream, Payload: payload, ReporterID: r.cfg.ID}
		if err := r.sender.Send(ev); err != nil {
			// The sender stopped accepting; its checkpoint will follow.
			r.log.Debug("sender closed, holding requests", log.Int("pending", len(r.queue)))
			r.releaseSender()
			return
		}

		t.attempts++
		r.queue = r.queue[1:]
		r.free = r.free[:len(r.free)-1]
		r.inflight[stream] = t
	}
}

// retry requeues t unless it ran out of attempts.
func (r *Reporter) retry(t *tracked) {
	if r.cfg.MaxAttempts > 0 && t.attempts >= r.cfg.MaxAttempts {
		r.log.Warn("giving up on request", log.String("request", t.req.ID), log.Int("attempts", t.attempts))
		t.req.Worker.OnFailed(t.req, domain.ErrDeliveryFailed)
		return
	}
	r.queue = append(r.queue, t)
}

// sortQueue restores submission order after requeueing.
func (r *Reporter) sortQueue() {
	sort.SliceStable(r.queue, func(i, j int) bool { return r.queue[i].seq < r.queue[j].seq })
}

func (r *Reporter) releaseSender() {
	if r.sender != nil {
		r.sender.Drop()
		r.sender = nil
	}
}
