package invoke

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"litsieve/internal/audit"
	"litsieve/internal/llm"
	"litsieve/internal/normalize"
	"litsieve/internal/promptcache"
)

// fakeCaller replays a scripted sequence of completions and errors.
type fakeCaller struct {
	name    string
	model   string
	script  []fakeReply
	calls   int
	prompts []string
}

type fakeReply struct {
	text string
	err  error
}

func (f *fakeCaller) Name() string  { return f.name }
func (f *fakeCaller) Model() string { return f.model }

func (f *fakeCaller) Complete(_ context.Context, prompt string, _ llm.Params) (llm.Completion, error) {
	f.prompts = append(f.prompts, prompt)
	reply := fakeReply{text: "YES. default"}
	if f.calls < len(f.script) {
		reply = f.script[f.calls]
	}
	f.calls++
	if reply.err != nil {
		return llm.Completion{}, reply.err
	}
	return llm.Completion{Text: reply.text, TokensIn: 10, TokensOut: 5, Latency: 20 * time.Millisecond}, nil
}

func transientErr(provider string) error {
	return &llm.TransientError{Provider: provider, StatusCode: 502}
}

func quotaErr(provider string) error {
	return &llm.QuotaError{Provider: provider, StatusCode: 429}
}

type testEngine struct {
	engine    *Engine
	primary   *fakeCaller
	fallback  *fakeCaller
	auditPath string
	slept     []time.Duration
}

func newTestEngine(t *testing.T, primary, fallback *fakeCaller, cacheDir string, force bool) *testEngine {
	t.Helper()
	auditPath := filepath.Join(t.TempDir(), "audit_log.jsonl")
	auditLog, err := audit.Open(auditPath)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	t.Cleanup(func() { _ = auditLog.Close() })

	engine, err := New(Options{
		Primary:       primary,
		Fallback:      fallback,
		Cache:         promptcache.NewStore(cacheDir, nil),
		Audit:         auditLog,
		RunID:         "test-run",
		Cooldown:      time.Minute,
		ForceFallback: force,
		Threshold:     3,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	te := &testEngine{engine: engine, primary: primary, fallback: fallback, auditPath: auditPath}
	engine.sleep = func(ctx context.Context, d time.Duration) error {
		te.slept = append(te.slept, d)
		return ctx.Err()
	}
	return te
}

func (te *testEngine) records(t *testing.T) []audit.Record {
	t.Helper()
	file, err := os.Open(te.auditPath)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer file.Close()

	var records []audit.Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec audit.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("parse audit record: %v", err)
		}
		records = append(records, rec)
	}
	return records
}

func decisionRequest(prompt string, cacheEligible bool) Request {
	return Request{
		Prompt:        prompt,
		Params:        llm.Params{Temperature: 0, TopP: 1, MaxTokens: 64},
		Module:        "triage",
		ArticleID:     "a-1",
		Mode:          normalize.ModeDecision,
		CacheEligible: cacheEligible,
	}
}

func TestInvokeCachedSecondCallSkipsNetwork(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{{text: "YES. Relevant."}}}
	fallback := &fakeCaller{name: "together", model: "fm"}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	first, err := te.engine.Invoke(context.Background(), decisionRequest("screen article one", true))
	if err != nil {
		t.Fatalf("first Invoke returned error: %v", err)
	}
	if first.CacheHit || first.Attempts != 1 {
		t.Fatalf("expected one network attempt on first call, got %+v", first)
	}

	second, err := te.engine.Invoke(context.Background(), decisionRequest("screen article one", true))
	if err != nil {
		t.Fatalf("second Invoke returned error: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("expected cache hit on second call")
	}
	if second.Attempts != 0 {
		t.Fatalf("cache hit must issue zero network attempts, got %d", second.Attempts)
	}
	if primary.calls != 1 {
		t.Fatalf("expected provider called once overall, got %d", primary.calls)
	}
	if second.Payload.(normalize.Decision) != first.Payload.(normalize.Decision) {
		t.Fatal("cached invocation must reproduce the identical normalized result")
	}

	records := te.records(t)
	if len(records) != 2 {
		t.Fatalf("expected success + cache-hit records, got %d", len(records))
	}
	if records[1].Outcome != audit.OutcomeCacheHit || records[1].Provider != CacheProvider {
		t.Fatalf("expected cache-hit audit note, got %+v", records[1])
	}
}

func TestInvokeCacheKeySharedAcrossModules(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{{text: "NO. Off topic."}}}
	fallback := &fakeCaller{name: "together", model: "fm"}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	req := decisionRequest("same prompt", true)
	if _, err := te.engine.Invoke(context.Background(), req); err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}

	other := req
	other.Module = "crossval"
	other.ArticleID = "a-2"
	result, err := te.engine.Invoke(context.Background(), other)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !result.CacheHit {
		t.Fatal("identical prompt+params from another module must share the cache entry")
	}
}

func TestInvokeCacheDisabledAlwaysCallsNetwork(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{{text: "YES."}, {text: "NO."}}}
	fallback := &fakeCaller{name: "together", model: "fm"}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	req := decisionRequest("independent sampling", false)
	if _, err := te.engine.Invoke(context.Background(), req); err != nil {
		t.Fatalf("first Invoke returned error: %v", err)
	}
	if _, err := te.engine.Invoke(context.Background(), req); err != nil {
		t.Fatalf("second Invoke returned error: %v", err)
	}
	if primary.calls != 2 {
		t.Fatalf("expected two independent network attempts, got %d", primary.calls)
	}
	records := te.records(t)
	if len(records) != 2 {
		t.Fatalf("expected two audit entries, got %d", len(records))
	}
}

func TestInvokeRetryBeforeFallback(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{
		{err: quotaErr("groq")},
		{text: "YES. On retry."},
	}}
	fallback := &fakeCaller{name: "together", model: "fm"}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	result, err := te.engine.Invoke(context.Background(), decisionRequest("retry me", true))
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if result.Provider != "groq" {
		t.Fatalf("expected primary provider after retry, got %q", result.Provider)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not be called when the retry succeeds")
	}
	if len(te.slept) != 1 || te.slept[0] != time.Minute {
		t.Fatalf("expected one fixed cooldown before retry, got %v", te.slept)
	}
	if te.engine.Router().Failures() != 0 {
		t.Fatalf("retry success must not count toward fallback, failures=%d", te.engine.Router().Failures())
	}

	records := te.records(t)
	if len(records) != 2 {
		t.Fatalf("expected exactly 2 audit records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Provider != "groq" {
			t.Fatalf("both records must name the primary, got %+v", rec)
		}
	}
	if records[0].Outcome != audit.OutcomeFailure || records[1].Outcome != audit.OutcomeSuccess {
		t.Fatalf("unexpected outcomes: %+v", records)
	}
}

func TestInvokeFallsBackForSingleRequest(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{
		{err: transientErr("groq")},
		{err: transientErr("groq")},
	}}
	fallback := &fakeCaller{name: "together", model: "fm", script: []fakeReply{{text: "NO. From fallback."}}}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	result, err := te.engine.Invoke(context.Background(), decisionRequest("fall back", true))
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if result.Provider != "together" {
		t.Fatalf("expected fallback provider, got %q", result.Provider)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 attempts (primary, retry, fallback), got %d", result.Attempts)
	}
	if te.engine.Router().Failures() != 1 {
		t.Fatalf("expected one counted primary failure, got %d", te.engine.Router().Failures())
	}
	// The very next request still tries the primary.
	if te.engine.Router().State() != StatePrimary {
		t.Fatalf("single failure must not flip the run to fallback, state=%s", te.engine.Router().State())
	}
}

func TestInvokeFallbackTriggerAfterThreeFailures(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{
		{err: transientErr("groq")}, {err: transientErr("groq")},
		{err: transientErr("groq")}, {err: transientErr("groq")},
		{err: transientErr("groq")}, {err: transientErr("groq")},
	}}
	fallback := &fakeCaller{name: "together", model: "fm", script: []fakeReply{
		{text: "YES. one"}, {text: "YES. two"}, {text: "YES. three"}, {text: "YES. four"},
	}}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	for i, prompt := range []string{"req one", "req two", "req three"} {
		if _, err := te.engine.Invoke(context.Background(), decisionRequest(prompt, false)); err != nil {
			t.Fatalf("request %d returned error: %v", i+1, err)
		}
	}
	if te.engine.Router().State() != StateFallback {
		t.Fatalf("expected fallback state after 3 failed requests, got %s", te.engine.Router().State())
	}

	primaryCallsBefore := primary.calls
	result, err := te.engine.Invoke(context.Background(), decisionRequest("req four", false))
	if err != nil {
		t.Fatalf("fourth request returned error: %v", err)
	}
	if primary.calls != primaryCallsBefore {
		t.Fatal("fourth request must skip the primary entirely")
	}
	if result.Provider != "together" || result.Attempts != 1 {
		t.Fatalf("expected direct fallback call, got %+v", result)
	}
}

func TestInvokeHardErrorSurfacesImmediately(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{
		{err: &llm.HardError{Provider: "groq", StatusCode: 401}},
	}}
	fallback := &fakeCaller{name: "together", model: "fm"}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	_, err := te.engine.Invoke(context.Background(), decisionRequest("hard fail", true))
	var hard *llm.HardError
	if !errors.As(err, &hard) {
		t.Fatalf("expected HardError, got %T: %v", err, err)
	}
	if primary.calls != 1 {
		t.Fatalf("hard errors must not be retried, primary calls=%d", primary.calls)
	}
	if fallback.calls != 0 {
		t.Fatal("hard errors must not fall back")
	}
	if te.engine.Router().Failures() != 0 {
		t.Fatal("hard errors must not count toward fallback escalation")
	}
	if len(te.slept) != 0 {
		t.Fatal("hard errors must not trigger a cooldown")
	}
}

func TestInvokeForceFallbackSkipsPrimary(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m"}
	fallback := &fakeCaller{name: "together", model: "fm", script: []fakeReply{{text: "YES. forced"}}}
	te := newTestEngine(t, primary, fallback, t.TempDir(), true)

	result, err := te.engine.Invoke(context.Background(), decisionRequest("forced", false))
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if primary.calls != 0 {
		t.Fatal("forced fallback must never touch the primary")
	}
	if result.Provider != "together" {
		t.Fatalf("expected fallback provider, got %q", result.Provider)
	}
}

func TestInvokeBothProvidersFail(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{
		{err: transientErr("groq")}, {err: transientErr("groq")},
	}}
	fallback := &fakeCaller{name: "together", model: "fm", script: []fakeReply{
		{err: transientErr("together")},
	}}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	_, err := te.engine.Invoke(context.Background(), decisionRequest("doomed", true))
	var transient *llm.TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("expected TransientError surfaced to caller, got %T: %v", err, err)
	}
	records := te.records(t)
	if len(records) != 3 {
		t.Fatalf("all three failed attempts must be audited, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Outcome != audit.OutcomeFailure {
			t.Fatalf("expected failure outcome, got %+v", rec)
		}
	}
}

func TestInvokeParseErrorKeepsRawInAudit(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{{text: "Maybe?"}}}
	fallback := &fakeCaller{name: "together", model: "fm"}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	_, err := te.engine.Invoke(context.Background(), decisionRequest("ambiguous", true))
	var parseErr *normalize.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %T: %v", err, err)
	}
	records := te.records(t)
	if len(records) != 1 || records[0].RawResponse != "Maybe?" {
		t.Fatalf("raw response must be preserved in the audit record, got %+v", records)
	}
}

func TestInvokeCancelledDuringCooldown(t *testing.T) {
	primary := &fakeCaller{name: "groq", model: "m", script: []fakeReply{{err: quotaErr("groq")}}}
	fallback := &fakeCaller{name: "together", model: "fm"}
	te := newTestEngine(t, primary, fallback, t.TempDir(), false)

	ctx, cancel := context.WithCancel(context.Background())
	te.engine.sleep = func(sleepCtx context.Context, d time.Duration) error {
		cancel()
		return sleepCtx.Err()
	}

	_, err := te.engine.Invoke(ctx, decisionRequest("interrupted", true))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from interrupted cooldown, got %v", err)
	}
	if primary.calls != 1 {
		t.Fatalf("no further attempts after cancellation, got %d", primary.calls)
	}
}
