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

	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/services"
)

var (
	archiverInstance *services.ArchiverFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleArchiveResults", handleArchiveResults)
}

func main() {}

// handleArchiveResults is the HTTP handler for the archiver service.
func handleArchiveResults(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		archiverInstance, initErr = services.NewArchiver(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Archiver initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := archiverInstance.Process(r.Context(), &req)
	switch {
	case errors.Is(err, services.ErrBadRequest):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrNoResults):
		http.Error(w, "Not Found: "+err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "jobId", req.JobID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
