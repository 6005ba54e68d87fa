package benchservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/qualityscore"
	"github.com/contenox/modelrouter/internal/taskresolver"
	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/contenox/modelrouter/libtracker"
	"github.com/contenox/modelrouter/runtimetypes"
)

const (
	CodeTimeout           = "TIMEOUT"
	CodeRequestError      = "REQUEST_ERROR"
	CodeUnsupportedMethod = "UNSUPPORTED_METHOD"
	CodeExecutionError    = "EXECUTION_ERROR"
	CodeModelNotAvailable = "MODEL_NOT_AVAILABLE"
)

// CheckResult is the outcome of one validation check on a response.
type CheckResult struct {
	Name   string `json:"name"`
	Valid  bool   `json:"valid"`
	Detail string `json:"detail,omitempty"`
}

// ExecutorConfig points the executor at the system's own public entry
// points and bounds each call.
type ExecutorConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Executor drives a test case end-to-end: resolve the model, issue the
// HTTP call, validate the response, score it, persist the result.
type Executor struct {
	resolver   taskresolver.Resolver
	scorer     *qualityscore.Scorer
	dbInstance libdb.DBManager
	client     *http.Client
	cfg        ExecutorConfig
	logger     *slog.Logger
	tracker    libtracker.ActivityTracker
}

func NewExecutor(resolver taskresolver.Resolver, scorer *qualityscore.Scorer, db libdb.DBManager, cfg ExecutorConfig, client *http.Client, logger *slog.Logger, tracker libtracker.ActivityTracker) (*Executor, error) {
	if resolver == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("executor base URL cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	return &Executor{
		resolver:   resolver,
		scorer:     scorer,
		dbInstance: db,
		client:     client,
		cfg:        cfg,
		logger:     logger,
		tracker:    tracker,
	}, nil
}

// Execute runs one test case. A returned TestResult always reflects what
// was persisted; only resolution-level configuration errors surface as a
// plain error without a result.
func (e *Executor) Execute(ctx context.Context, testCase *TestCase, modelOverride, providerOverride string) (*runtimetypes.TestResult, error) {
	reportErr, reportChange, end := e.tracker.Start(
		ctx,
		"execute",
		"benchmark",
		"task", testCase.Task,
		"size", testCase.Size,
	)
	defer end()

	providerName, modelName, errCode, err := e.resolveTarget(ctx, testCase, modelOverride, providerOverride)
	if err != nil {
		if errCode == "" {
			// Unresolvable configuration is the caller's problem, not a
			// benchmark outcome.
			reportErr(err)
			return nil, err
		}
		result := e.errorResult(testCase, providerName, modelName, errCode, err.Error(), 0)
		e.persist(ctx, result)
		reportErr(err)
		return result, nil
	}

	started := time.Now()
	payload, code, err := e.call(ctx, testCase, providerName, modelName)
	duration := time.Since(started)
	if err != nil {
		result := e.errorResult(testCase, providerName, modelName, code, err.Error(), duration)
		e.persist(ctx, result)
		reportErr(err)
		return result, nil
	}

	checks := e.runChecks(testCase, payload)
	allValid := true
	for _, c := range checks {
		if !c.Valid {
			allValid = false
			break
		}
	}

	result := &runtimetypes.TestResult{
		ModelKey:   runtimetypes.ModelKey(providerName, modelName),
		Task:       testCase.Task,
		Size:       testCase.Size,
		DurationMs: duration.Milliseconds(),
	}
	if raw, err := json.Marshal(payload); err == nil {
		result.Raw = raw
	}
	if encoded, err := json.Marshal(checks); err == nil {
		result.Checks = encoded
	}
	if tokens, ok := extractTokens(payload); ok {
		result.Tokens = &tokens
	}

	if allValid {
		result.Status = runtimetypes.ResultStatusSuccess
		e.scoreResult(ctx, testCase, payload, result)
	} else {
		result.Status = runtimetypes.ResultStatusError
		result.ErrorCode = CodeExecutionError
		result.ErrorMessage = "response validation failed"
	}

	e.persist(ctx, result)
	reportChange(result.ModelKey, map[string]any{
		"status":   result.Status,
		"duration": result.DurationMs,
	})
	return result, nil
}

// resolveTarget determines the effective provider/model. Explicit overrides
// for both win outright; a model override alone must appear in the resolved
// provider's capability list for the task.
func (e *Executor) resolveTarget(ctx context.Context, testCase *TestCase, modelOverride, providerOverride string) (provider, model, errCode string, err error) {
	if providerOverride != "" && modelOverride != "" {
		return providerOverride, modelOverride, "", nil
	}

	task := modelrepo.Task(testCase.Task)
	if modelOverride != "" {
		providerInstance, cfg, err := e.resolver.ProviderFor(ctx, task)
		if err != nil {
			return "", "", "", err
		}
		if !slices.Contains(providerInstance.AvailableModels(task), modelOverride) {
			return cfg.Provider, modelOverride, CodeModelNotAvailable,
				fmt.Errorf("model %q is not available on provider %q for task %s", modelOverride, cfg.Provider, task)
		}
		return cfg.Provider, modelOverride, "", nil
	}

	cfg, err := e.resolver.Resolve(ctx, task)
	if err != nil {
		return "", "", "", err
	}
	return cfg.Provider, cfg.Model, "", nil
}

// call issues the fixture's HTTP request against the system's own entry
// point and decodes the JSON body.
func (e *Executor) call(ctx context.Context, testCase *TestCase, provider, model string) (map[string]any, string, error) {
	method := testCase.Method
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, CodeUnsupportedMethod, fmt.Errorf("unsupported HTTP method %q", method)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	// The resolved target travels with the request so the entry point
	// exercises exactly the model under test.
	params := make(map[string]any, len(testCase.Parameters)+2)
	for k, v := range testCase.Parameters {
		params[k] = v
	}
	params["provider"] = provider
	params["model"] = model

	target := e.cfg.BaseURL + testCase.Endpoint
	var body io.Reader
	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, fmt.Sprintf("%v", v))
		}
		target += "?" + query.Encode()
	} else {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, CodeRequestError, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(callCtx, method, target, body)
	if err != nil {
		return nil, CodeRequestError, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, CodeTimeout, fmt.Errorf("request timed out after %s", e.cfg.Timeout)
		}
		return nil, CodeRequestError, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, CodeRequestError, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusMethodNotAllowed {
		return nil, CodeUnsupportedMethod, fmt.Errorf("entry point rejected method %s", method)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, CodeExecutionError, fmt.Errorf("entry point returned status %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, CodeExecutionError, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return payload, "", nil
}

// runChecks evaluates the declared field paths and, when requested, the
// JSON-shape validation of the structured payload.
func (e *Executor) runChecks(testCase *TestCase, payload map[string]any) []CheckResult {
	checks := make([]CheckResult, 0, len(testCase.ExpectedFieldPaths)+1)

	for _, path := range testCase.ExpectedFieldPaths {
		value, err := jsonpath.Get(path, any(payload))
		switch {
		case err != nil:
			checks = append(checks, CheckResult{Name: path, Valid: false, Detail: err.Error()})
		case value == nil:
			checks = append(checks, CheckResult{Name: path, Valid: false, Detail: "field is null"})
		default:
			checks = append(checks, CheckResult{Name: path, Valid: true})
		}
	}

	if testCase.ValidateStructuredPayload {
		checks = append(checks, e.validateShape(testCase, payload))
	}
	return checks
}

func (e *Executor) validateShape(testCase *TestCase, payload map[string]any) CheckResult {
	check := CheckResult{Name: "json_validation"}

	path := testCase.StructuredPayloadPath
	if path == "" {
		path = "$.data"
	}
	value, err := jsonpath.Get(path, any(payload))
	if err != nil {
		check.Detail = fmt.Sprintf("structured payload %s missing: %v", path, err)
		return check
	}
	obj, ok := value.(map[string]any)
	if !ok {
		check.Detail = fmt.Sprintf("structured payload %s is not an object", path)
		return check
	}
	encoded, err := json.Marshal(obj)
	if err != nil {
		check.Detail = fmt.Sprintf("structured payload is not serializable: %v", err)
		return check
	}
	var roundTripped map[string]any
	if err := json.Unmarshal(encoded, &roundTripped); err != nil {
		check.Detail = fmt.Sprintf("structured payload does not round-trip: %v", err)
		return check
	}

	check.Valid = true
	return check
}

// scoreResult attaches a quality score when a scorer is configured and the
// response carries a scorable structured payload. Scorer failures are
// logged and never downgrade the test's success.
func (e *Executor) scoreResult(ctx context.Context, testCase *TestCase, payload map[string]any, result *runtimetypes.TestResult) {
	if e.scorer == nil {
		return
	}
	structured := e.structuredPayload(testCase, payload)
	if structured == nil {
		return
	}

	outcome, err := e.scorer.Score(ctx, testCase.Parameters, structured)
	if err != nil {
		e.logger.Warn("quality scoring failed",
			"task", testCase.Task,
			"size", testCase.Size,
			"model", result.ModelKey,
			"error", err)
		return
	}
	score := outcome.Score
	result.Score = &score
	if encoded, err := json.Marshal(outcome.InputEmbedding); err == nil {
		result.InputEmbedding = encoded
	}
	if encoded, err := json.Marshal(outcome.OutputEmbedding); err == nil {
		result.OutputEmbedding = encoded
	}
}

func (e *Executor) structuredPayload(testCase *TestCase, payload map[string]any) map[string]any {
	path := testCase.StructuredPayloadPath
	if path == "" {
		path = "$.data"
	}
	value, err := jsonpath.Get(path, any(payload))
	if err != nil {
		return nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return obj
}

func (e *Executor) errorResult(testCase *TestCase, provider, model, code, message string, duration time.Duration) *runtimetypes.TestResult {
	modelKey := runtimetypes.ModelKey(provider, model)
	return &runtimetypes.TestResult{
		ModelKey:     modelKey,
		Task:         testCase.Task,
		Size:         testCase.Size,
		Status:       runtimetypes.ResultStatusError,
		ErrorCode:    code,
		ErrorMessage: message,
		DurationMs:   duration.Milliseconds(),
	}
}

// persist upserts the result. A benchmark run never fails because its own
// bookkeeping failed; storage errors are logged and dropped.
func (e *Executor) persist(ctx context.Context, result *runtimetypes.TestResult) {
	store := runtimetypes.New(e.dbInstance.WithoutTransaction())
	if err := store.UpsertTestResult(ctx, result); err != nil {
		e.logger.Error("failed to persist benchmark result",
			"model", result.ModelKey,
			"task", result.Task,
			"size", result.Size,
			"error", err)
	}
}

func extractTokens(payload map[string]any) (int, bool) {
	value, err := jsonpath.Get("$.data.usage.tokens", any(payload))
	if err != nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
