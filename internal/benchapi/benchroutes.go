package benchapi

import (
	"net/http"
	"strings"

	serverops "github.com/contenox/modelrouter/apiframework"
	"github.com/contenox/modelrouter/benchservice"
	"github.com/contenox/modelrouter/selectorservice"
)

// AddBenchRoutes mounts the benchmark and best-model selection surface.
func AddBenchRoutes(mux *http.ServeMux, benchService benchservice.Service, selectorService selectorservice.Service) {
	b := &benchManager{benchService: benchService, selectorService: selectorService}

	mux.HandleFunc("POST /api/bench/run", b.run)
	mux.HandleFunc("POST /api/bench/sweep", b.sweep)
	mux.HandleFunc("GET /api/bench/cases", b.cases)
	mux.HandleFunc("GET /api/bench/results", b.results)
	mux.HandleFunc("GET /api/bench/result", b.result)
	mux.HandleFunc("GET /api/bench/best", b.best)
}

type benchManager struct {
	benchService    benchservice.Service
	selectorService selectorservice.Service
}

type RunRequest struct {
	Task     string `json:"task"`
	Size     string `json:"size"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type SweepRequest struct {
	Tasks []string `json:"tasks,omitempty"`
	Sizes []string `json:"sizes,omitempty"`
}

// Runs a single benchmark case against the resolved or explicitly
// targeted model and persists the result.
func (b *benchManager) run(w http.ResponseWriter, r *http.Request) {
	req, err := serverops.Decode[RunRequest](r) // @request benchapi.RunRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	result, err := b.benchService.Run(r.Context(), req.Task, req.Size, req.Model, req.Provider)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, result) // @response runtimetypes.TestResult
}

// Benchmarks every enabled model record against every matching fixture.
// Tasks and sizes narrow the batch; empty filters mean everything.
func (b *benchManager) sweep(w http.ResponseWriter, r *http.Request) {
	req, err := serverops.Decode[SweepRequest](r) // @request benchapi.SweepRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	results, err := b.benchService.Sweep(r.Context(), req.Tasks, req.Sizes)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, results) // @response []runtimetypes.TestResult
}

// Lists the embedded benchmark fixtures.
func (b *benchManager) cases(w http.ResponseWriter, r *http.Request) {
	cases, err := b.benchService.ListCases(r.Context())
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ListOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, cases) // @response []benchservice.TestCase
}

// Lists stored benchmark results, optionally filtered by task and size.
func (b *benchManager) results(w http.ResponseWriter, r *http.Request) {
	task := serverops.GetQueryParam(r, "task", "")
	size := serverops.GetQueryParam(r, "size", "")
	results, err := b.benchService.ListResults(r.Context(), task, size)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ListOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, results) // @response []runtimetypes.TestResult
}

// Fetches the stored result for one (model, task, size) identity. The
// model key lives in a query parameter because it contains a slash.
func (b *benchManager) result(w http.ResponseWriter, r *http.Request) {
	modelKey := serverops.GetQueryParam(r, "model", "")
	task := serverops.GetQueryParam(r, "task", "")
	size := serverops.GetQueryParam(r, "size", "")
	if modelKey == "" || task == "" || size == "" {
		_ = serverops.Error(w, r, serverops.ErrMissingParameter, serverops.GetOperation)
		return
	}
	result, err := b.benchService.GetResult(r.Context(), modelKey, task, size)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, result) // @response runtimetypes.TestResult
}

// Answers "best model for task X at size S under criterion C" from the
// stored benchmark results, falling back to the configured model.
func (b *benchManager) best(w http.ResponseWriter, r *http.Request) {
	task := serverops.GetQueryParam(r, "task", "")
	size := serverops.GetQueryParam(r, "size", "small")
	criterion := strings.ToLower(serverops.GetQueryParam(r, "criterion", selectorservice.CriterionDuration))

	selection, err := b.selectorService.BestModel(r.Context(), task, size, criterion)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}
	_ = serverops.Encode(w, r, http.StatusOK, selection) // @response selectorservice.Selection
}
