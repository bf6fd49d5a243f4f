package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/labslipflow/internal/services"
	"github.com/Lllllllleong/labslipflow/internal/store"
)

var (
	apiInstance *services.ResultsAPIFunction
	once        sync.Once
	initErr     error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleResults", handleResults)
}

func main() {}

// handleResults serves:
//
//	GET    ?jobId=<id>  job status and results
//	GET    ?jobs        newest jobs first; optional filename=<name> and limit=<n>
//	GET    ?stats       totals across all jobs and results
//	GET    ?q=<query>   search results by name, code or filename
//	DELETE ?id=<id>     delete one result record
func handleResults(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		apiInstance, initErr = services.NewResultsAPI(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Results API initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	var (
		res any
		err error
	)
	switch {
	case r.Method == http.MethodGet && q.Has("jobId"):
		res, err = apiInstance.JobStatus(r.Context(), q.Get("jobId"))
	case r.Method == http.MethodGet && q.Has("jobs"):
		res, err = apiInstance.ListJobs(r.Context(), q.Get("filename"), q.Get("limit"))
	case r.Method == http.MethodGet && q.Has("stats"):
		res, err = apiInstance.Stats(r.Context())
	case r.Method == http.MethodGet && q.Has("q"):
		res, err = apiInstance.Search(r.Context(), q.Get("q"))
	case r.Method == http.MethodDelete:
		if err = apiInstance.Delete(r.Context(), q.Get("id")); err == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	case r.Method == http.MethodGet:
		http.Error(w, "Bad Request: jobId, jobs, stats or q is required", http.StatusBadRequest)
		return
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case errors.Is(err, services.ErrBadRequest):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case err != nil:
		slog.Error("Results request failed", "error", err, "method", r.Method, "query", r.URL.RawQuery)
		http.Error(w, "Internal Server Error: request failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
