package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"litsieve/internal/audit"
	"litsieve/internal/llm"
	"litsieve/internal/logging"
	"litsieve/internal/logstream"
	"litsieve/internal/normalize"
	"litsieve/internal/promptcache"
	"litsieve/internal/ratelimit"
)

// CacheProvider is the provider name recorded for responses served from disk.
const CacheProvider = "cache"

// Request describes one completion to obtain. Construct it once and do not
// mutate it afterwards.
type Request struct {
	Prompt         string
	Params         llm.Params
	Module         string
	ArticleID      string
	Mode           normalize.Mode
	ExpectedFields []string
	CacheEligible  bool
}

// Result is the outcome of a successful invocation.
type Result struct {
	Provider  string
	Raw       string
	Payload   normalize.Payload
	Latency   time.Duration
	TokensIn  int
	TokensOut int
	CacheHit  bool
	Attempts  int
}

// Caller is the provider surface the engine needs; *llm.Client satisfies it.
type Caller interface {
	Name() string
	Model() string
	Complete(ctx context.Context, prompt string, params llm.Params) (llm.Completion, error)
}

// Options wires an Engine's collaborators.
type Options struct {
	Primary       Caller
	Fallback      Caller
	Limiter       *ratelimit.Limiter
	Cache         *promptcache.Store
	Audit         *audit.Logger
	Hub           *logstream.Hub
	Logger        *slog.Logger
	RunID         string
	Cooldown      time.Duration
	ForceFallback bool
	Threshold     int
}

// Engine executes invocation requests for one pipeline run.
type Engine struct {
	primary  Caller
	fallback Caller
	limiter  *ratelimit.Limiter
	cache    *promptcache.Store
	auditLog *audit.Logger
	hub      *logstream.Hub
	logger   *slog.Logger
	router   *Router
	runID    string
	cooldown time.Duration

	// sleep is swapped out in tests so cooldowns do not slow the suite.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs an Engine. Primary and fallback callers are required; every
// other collaborator degrades to a no-op when absent.
func New(opts Options) (*Engine, error) {
	if opts.Primary == nil || opts.Fallback == nil {
		return nil, errors.New("invoke: primary and fallback callers required")
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Engine{
		primary:  opts.Primary,
		fallback: opts.Fallback,
		limiter:  opts.Limiter,
		cache:    opts.Cache,
		auditLog: opts.Audit,
		hub:      opts.Hub,
		logger:   logging.NewComponentLogger(opts.Logger, "invoke"),
		router:   NewRouter(opts.Threshold, opts.ForceFallback),
		runID:    opts.RunID,
		cooldown: cooldown,
		sleep:    sleepContext,
	}, nil
}

// Router exposes the run's router state for inspection and tests.
func (e *Engine) Router() *Router { return e.router }

// Invoke obtains one completion for the request: cache first, then the
// provider selected by the router with the retry/fallback policy applied.
// Every network attempt is audited before Invoke returns.
func (e *Engine) Invoke(ctx context.Context, req Request) (Result, error) {
	key := promptcache.Key(req.Prompt, e.primary.Model(), req.Params)

	if req.CacheEligible {
		result, ok, err := e.tryCache(key, req)
		if err != nil {
			return Result{}, err
		}
		if ok {
			return result, nil
		}
	}

	completion, provider, attempts, err := e.complete(ctx, req, key)
	if err != nil {
		return Result{Attempts: attempts}, err
	}

	if req.CacheEligible {
		if err := e.cache.Put(key, completion.Text, e.primary.Model()); err != nil {
			// Cache trouble never fails the call; the response is already in hand.
			e.logger.Warn("cache write failed", logging.Error(err), logging.String("key", key))
		}
	}

	payload, err := e.normalizePayload(req, completion.Text)
	if err != nil {
		return Result{Attempts: attempts}, err
	}

	return Result{
		Provider:  provider,
		Raw:       completion.Text,
		Payload:   payload,
		Latency:   completion.Latency,
		TokensIn:  completion.TokensIn,
		TokensOut: completion.TokensOut,
		Attempts:  attempts,
	}, nil
}

func (e *Engine) tryCache(key string, req Request) (Result, bool, error) {
	text, ok, err := e.cache.Get(key)
	if err != nil {
		// Treated as a miss: the invocation proceeds over the network.
		e.logger.Warn("cache read failed",
			logging.Error(err),
			logging.String("key", key),
			logging.String(logging.FieldArticleID, req.ArticleID))
		return Result{}, false, nil
	}
	if !ok {
		return Result{}, false, nil
	}

	e.audit(audit.Record{
		RunID:       e.runID,
		Module:      req.Module,
		ArticleID:   req.ArticleID,
		Provider:    CacheProvider,
		PromptHash:  key,
		Outcome:     audit.OutcomeCacheHit,
		RawResponse: text,
		CacheHit:    true,
	})
	e.publish("cache hit", req, CacheProvider)

	// A cached response that no longer parses surfaces like any other parse
	// failure, without burning a network attempt; the raw text stays
	// available in the audit record above.
	payload, err := e.normalizePayload(req, text)
	if err != nil {
		return Result{}, false, err
	}
	return Result{
		Provider: CacheProvider,
		Raw:      text,
		Payload:  payload,
		CacheHit: true,
	}, true, nil
}

// complete runs the router/retry/fallback state machine for one request.
func (e *Engine) complete(ctx context.Context, req Request, key string) (llm.Completion, string, int, error) {
	attempts := 0

	if e.router.UsePrimary() {
		completion, err := e.attempt(ctx, e.primary, req, key, &attempts)
		if err == nil {
			return completion, e.primary.Name(), attempts, nil
		}
		if !llm.Retryable(err) {
			return llm.Completion{}, "", attempts, err
		}

		// Quota or transient failure: cool down, then retry the primary once.
		e.publish("primary failed, cooling down", req, e.primary.Name())
		if sleepErr := e.sleep(ctx, e.cooldown); sleepErr != nil {
			return llm.Completion{}, "", attempts, sleepErr
		}
		completion, err = e.attempt(ctx, e.primary, req, key, &attempts)
		if err == nil {
			return completion, e.primary.Name(), attempts, nil
		}
		if !llm.Retryable(err) {
			return llm.Completion{}, "", attempts, err
		}

		e.router.RecordPrimaryFailure()
		e.publish("primary retry failed, falling back", req, e.fallback.Name())
	}

	completion, err := e.attempt(ctx, e.fallback, req, key, &attempts)
	if err != nil {
		return llm.Completion{}, "", attempts, err
	}
	return completion, e.fallback.Name(), attempts, nil
}

// attempt performs one provider call and audits it, success or not.
func (e *Engine) attempt(ctx context.Context, caller Caller, req Request, key string, attempts *int) (llm.Completion, error) {
	if err := e.waitSlot(ctx, caller.Name()); err != nil {
		return llm.Completion{}, err
	}

	*attempts++
	completion, err := caller.Complete(ctx, req.Prompt, req.Params)

	rec := audit.Record{
		RunID:      e.runID,
		Module:     req.Module,
		ArticleID:  req.ArticleID,
		Provider:   caller.Name(),
		PromptHash: key,
		Attempt:    *attempts,
		LatencyMS:  float64(completion.Latency.Microseconds()) / 1000,
		TokensIn:   completion.TokensIn,
		TokensOut:  completion.TokensOut,
	}
	if err != nil {
		rec.Outcome = audit.OutcomeFailure
		rec.Error = err.Error()
	} else {
		rec.Outcome = audit.OutcomeSuccess
		rec.RawResponse = completion.Text
	}
	e.audit(rec)

	if err != nil {
		e.logger.Warn("provider attempt failed",
			logging.Error(err),
			logging.String(logging.FieldProvider, caller.Name()),
			logging.String(logging.FieldArticleID, req.ArticleID),
			logging.Int("attempt", *attempts))
	}
	return completion, err
}

func (e *Engine) waitSlot(ctx context.Context, provider string) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx, provider)
}

func (e *Engine) normalizePayload(req Request, text string) (normalize.Payload, error) {
	switch req.Mode {
	case normalize.ModeDecision:
		decision, err := normalize.ParseDecision(text)
		if err != nil {
			return nil, err
		}
		return decision, nil
	case normalize.ModeFields:
		fields, err := normalize.ParseFields(text, req.ExpectedFields)
		if err != nil {
			return nil, err
		}
		return fields, nil
	case normalize.ModeSummary:
		summary, err := normalize.ParseSummary(text)
		if err != nil {
			return nil, err
		}
		return summary, nil
	default:
		return nil, fmt.Errorf("invoke: unknown normalize mode %q", req.Mode)
	}
}

func (e *Engine) audit(rec audit.Record) {
	if e.auditLog == nil {
		return
	}
	if err := e.auditLog.Log(rec); err != nil {
		e.logger.Error("audit write failed", logging.Error(err))
	}
}

func (e *Engine) publish(message string, req Request, provider string) {
	e.hub.Publish(logstream.Event{
		Level:     "info",
		Message:   message,
		Stage:     req.Module,
		ArticleID: req.ArticleID,
		Provider:  provider,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
