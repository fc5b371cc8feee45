package pipeline

import "sync"

// Once wraps an Engine so Init and Deinit each run at most one time no
// matter how many controllers share it. Deinit is skipped if Init never
// succeeded.
type Once struct {
	engine Engine

	mu          sync.Mutex
	initialized bool
	initErr     error
	initDone    bool
	deinitDone  bool
}

// NewOnce wraps engine.
func NewOnce(engine Engine) *Once {
	return &Once{engine: engine}
}

// Init runs the engine's Init the first time and returns its result on
// every call.
func (o *Once) Init() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.initDone {
		o.initDone = true
		o.initErr = o.engine.Init()
		o.initialized = o.initErr == nil
	}
	return o.initErr
}

// Deinit tears the engine down once, after a successful Init.
func (o *Once) Deinit() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.initialized || o.deinitDone {
		return
	}
	o.deinitDone = true
	o.engine.Deinit()
}
