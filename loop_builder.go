package imageloop

import (
	"log/slog"
)

// Controller defaults.
const (
	DefaultMaxIterations  = 3
	DefaultScoreThreshold = 95.0
)

// ControllerOption configures the Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets a structured logger for the controller.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMaxIterations caps the number of rounds. Values below 1 are ignored.
func WithMaxIterations(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithScoreThreshold sets the score at or above which a run stops early.
func WithScoreThreshold(threshold float64) ControllerOption {
	return func(c *Controller) {
		c.scoreThreshold = threshold
	}
}

// WithSessionStore sets where refinement messages are recorded. Sessions in a
// caller's store are kept after the run. Without this option each run's
// session lives in an internal store and is deleted when the run ends.
func WithSessionStore(store SessionStore) ControllerOption {
	return func(c *Controller) {
		if store != nil {
			c.sessions = store
		}
	}
}

// WithSessionAdvancer sets a hook called after every refinement.
func WithSessionAdvancer(advancer SessionAdvancer) ControllerOption {
	return func(c *Controller) {
		c.advancer = advancer
	}
}

// WithSessionConfig attaches the prompter's session config. When store is
// non-nil each run's session id is saved to it as LastSessionID.
func WithSessionConfig(cfg *SessionConfig, store ConfigStore) ControllerOption {
	return func(c *Controller) {
		c.sessionConfig = cfg
		c.configStore = store
	}
}

// WithPrimaryReferenceResend makes rounds that continue a generation context
// send the first reference again instead of none.
func WithPrimaryReferenceResend(resend bool) ControllerOption {
	return func(c *Controller) {
		c.resendPrimary = resend
	}
}

// NewController creates a Controller driving gen, eval and prompter.
//
// Example:
//
//	ctrl := imageloop.NewController(manager, evaluator, prompter,
//	    imageloop.WithMaxIterations(5),
//	    imageloop.WithScoreThreshold(90),
//	)
//	report := ctrl.Run(ctx, "a red bicycle", nil, imageloop.DefaultOptions())
func NewController(gen Generator, eval Evaluator, prompter Prompter, opts ...ControllerOption) *Controller {
	c := &Controller{
		generator:      gen,
		evaluator:      eval,
		prompter:       prompter,
		logger:         slog.Default(),
		maxIterations:  DefaultMaxIterations,
		scoreThreshold: DefaultScoreThreshold,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.sessions == nil {
		c.ownedSessions = NewMemorySessionStore()
		c.sessions = c.ownedSessions
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}
