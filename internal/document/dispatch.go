package document

// Dispatcher serializes document mutations onto a single goroutine so
// deliveries arriving from worker goroutines never interleave with edits.
type Dispatcher interface {
	Dispatch(fn func())
}

// SerialDispatcher runs dispatched functions in order on one goroutine.
// This stands in for a UI event loop in the command-line frontend.
type SerialDispatcher struct {
	queue chan func()
	done  chan struct{}
}

// NewSerialDispatcher starts the dispatch loop.
func NewSerialDispatcher() *SerialDispatcher {
	d := &SerialDispatcher{
		queue: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *SerialDispatcher) loop() {
	defer close(d.done)
	for fn := range d.queue {
		fn()
	}
}

// Dispatch enqueues fn to run on the loop goroutine.
func (d *SerialDispatcher) Dispatch(fn func()) {
	d.queue <- fn
}

// Close stops accepting work and waits for queued functions to finish.
func (d *SerialDispatcher) Close() {
	close(d.queue)
	<-d.done
}

// syncDispatcher runs functions inline; used in tests.
type syncDispatcher struct{}

func (syncDispatcher) Dispatch(fn func()) { fn() }
