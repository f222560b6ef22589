package imageloop

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Controller runs the generate, evaluate and refine loop. It holds no per-run
// state and may run several loops concurrently if its collaborators allow it.
type Controller struct {
	generator Generator
	evaluator Evaluator
	prompter  Prompter

	sessions      SessionStore
	ownedSessions *MemorySessionStore
	advancer      SessionAdvancer
	sessionConfig *SessionConfig
	configStore   ConfigStore

	maxIterations  int
	scoreThreshold float64
	resendPrimary  bool

	logger *slog.Logger
}

// loopState is the mutable state of a single Run.
type loopState struct {
	sessionID    string
	prompt       string
	continuation string
	bestScore    float64
	bestArtifact *Artifact
	history      []IterationRecord
}

// Run refines prompt until a round scores at or above the threshold, the
// iteration cap is reached, the first round fails outright, or ctx ends. It
// always returns a complete report; failures are recorded, not returned.
func (c *Controller) Run(ctx context.Context, prompt string, refs []string, opts *GenerateOptions) *LoopReport {
	start := time.Now()
	state := &loopState{
		sessionID: c.openSession(ctx),
		prompt:    prompt,
		bestScore: NoScore,
		history:   make([]IterationRecord, 0, c.maxIterations),
	}
	defer c.release(state)

	c.logger.Info("starting refinement loop",
		"session_id", state.sessionID,
		"max_iterations", c.maxIterations,
		"threshold", c.scoreThreshold,
		"references", len(refs),
	)

	reason := c.loop(ctx, state, refs, opts)

	report := &LoopReport{
		FinalScore: state.bestScore,
		History:    state.history,
		SessionID:  state.sessionID,
		StopReason: reason,
	}
	if state.bestArtifact != nil {
		ref := state.bestArtifact.Ref
		report.BestImage = &ref
	}

	c.logger.Info("refinement loop finished",
		"session_id", state.sessionID,
		"stop_reason", string(reason),
		"rounds", len(state.history),
		"final_score", state.bestScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report
}

func (c *Controller) loop(ctx context.Context, state *loopState, refs []string, opts *GenerateOptions) StopReason {
	for round := 1; round <= c.maxIterations; round++ {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("loop cancelled", "round", round, "error", err.Error())
			return StopReasonCancelled
		}

		gen, err := c.generator.Generate(ctx, GenerateRequest{
			Prompt:       state.prompt,
			References:   c.referencesFor(state, refs),
			Continuation: state.continuation,
			Options:      opts,
		})
		if gen != nil && gen.Continuation != "" {
			state.continuation = gen.Continuation
		}

		if err != nil || gen == nil || gen.Artifact == nil {
			if err == nil {
				err = ErrNoImage
			}
			state.history = append(state.history, degradedRecord(round, state.prompt, err))
			c.logger.Warn("generation failed",
				"round", round,
				"continuation", state.continuation != "",
				"error", err.Error(),
			)
			if round == 1 && state.continuation == "" {
				return StopReasonFatal
			}
			continue
		}

		eval, evalErr := c.evaluator.Evaluate(ctx, gen.Artifact, state.prompt)
		if evalErr != nil {
			eval = SentinelEvaluation(evalErr)
		}

		rec := completedRecord(round, state.prompt, gen.Artifact.Ref, eval)
		if evalErr != nil {
			rec.Error = evalErr.Error()
		}
		state.history = append(state.history, rec)

		if eval.Score > state.bestScore {
			state.bestScore = eval.Score
			state.bestArtifact = gen.Artifact
		}

		c.logger.Info("round evaluated",
			"round", round,
			"score", eval.Score,
			"best_score", state.bestScore,
			"artifact", gen.Artifact.Ref,
		)

		if eval.Score >= c.scoreThreshold {
			return StopReasonThreshold
		}

		if evalErr != nil {
			c.logger.Warn("evaluation failed, keeping prompt",
				"round", round,
				"error", evalErr.Error(),
			)
			continue
		}

		c.refine(ctx, state, round, eval.Feedback)
	}
	return StopReasonExhausted
}

// referencesFor forwards all references until a generation context exists.
// After that the context carries them, so none are sent unless primary
// reference resending is enabled.
func (c *Controller) referencesFor(state *loopState, refs []string) []string {
	if state.continuation == "" {
		return refs
	}
	if c.resendPrimary && len(refs) > 0 {
		return refs[:1]
	}
	return nil
}

func (c *Controller) refine(ctx context.Context, state *loopState, round int, feedback string) {
	refined, err := c.prompter.Refine(ctx, state.prompt, feedback)
	if err == nil && strings.TrimSpace(refined) == "" {
		err = errors.New("prompter returned an empty prompt")
	}
	if err != nil {
		c.logger.Warn("refinement failed, keeping prompt",
			"round", round,
			"error", err.Error(),
		)
		return
	}
	state.prompt = refined

	if err := c.sessions.Append(ctx, state.sessionID,
		Message{Role: RoleUser, Content: feedback},
		Message{Role: RoleAssistant, Content: refined},
	); err != nil {
		c.logger.Warn("failed to record refinement",
			"session_id", state.sessionID,
			"error", err.Error(),
		)
	}

	if c.advancer == nil {
		return
	}
	calls, err := c.advancer.Advance(ctx, state.sessionID)
	if err != nil {
		c.logger.Warn("session advance failed",
			"session_id", state.sessionID,
			"error", err.Error(),
		)
		return
	}
	for _, call := range calls {
		c.logger.Debug("session tool call",
			"session_id", state.sessionID,
			"tool", call.Name,
			"call_id", call.ID,
		)
	}
}

// openSession creates the run's session, falling back to a local id when the
// store fails, and records it in the session config when one is attached.
func (c *Controller) openSession(ctx context.Context) string {
	id, err := c.sessions.Create(ctx)
	if err != nil || id == "" {
		id = uuid.NewString()
		attrs := []any{"session_id", id}
		if err != nil {
			attrs = append(attrs, "error", err.Error())
		}
		c.logger.Warn("session store unavailable, using local session id", attrs...)
	}

	if c.sessionConfig != nil && c.configStore != nil {
		cfg := *c.sessionConfig
		cfg.LastSessionID = id
		if err := c.configStore.Save(ctx, &cfg); err != nil {
			c.logger.Warn("failed to save session config",
				"session_id", id,
				"error", err.Error(),
			)
		}
	}
	return id
}

// release drops what a run holds once it ends: the generation context and,
// when the controller owns the session store, the run's session.
func (c *Controller) release(state *loopState) {
	if c.ownedSessions != nil {
		c.ownedSessions.Delete(state.sessionID)
	}
	if state.continuation == "" {
		return
	}
	if r, ok := c.generator.(ContinuationReleaser); ok {
		r.Release(state.continuation)
	}
}
