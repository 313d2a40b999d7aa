package rest

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/reconcile"
	"github.com/marmos91/binder/pkg/storage"
)

// ListResponse is the body of GET /.
type ListResponse struct {
	FilePaths []string `json:"file_paths"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (a *Adapter) handleList(w http.ResponseWriter, r *http.Request) {
	// "/" is a prefix pattern and sees every unmatched GET.
	if r.URL.Path != "/" {
		respondMessage(w, http.StatusNotFound, msgNotFound)
		return
	}

	locs, err := a.coord.ListFiles(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ListResponse{FilePaths: locs})
}

func (a *Adapter) handleGet(w http.ResponseWriter, r *http.Request) {
	name, ok := fileParam(w, r)
	if !ok {
		return
	}

	rc, _, err := a.coord.OpenFile(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if n, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all that is left is to log.
		logger.Warn("[%s] stream of %q aborted after %d bytes: %v", requestID(r), name, n, err)
	}
}

// handlePut checks, in order: token, declared length, then hands off to the
// coordinator which validates the name and admits against the quota.
func (a *Adapter) handlePut(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r) {
		return
	}

	name, ok := fileParam(w, r)
	if !ok {
		return
	}

	if r.ContentLength < 0 {
		respondMessage(w, http.StatusLengthRequired, msgNoContent)
		return
	}

	res, err := a.coord.PutFile(r.Context(), name, uint64(r.ContentLength), r.Body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger.Info("[%s] stored %q as entry %d (%d bytes)", requestID(r), name, res.Entry.ID, res.Written)

	loc := a.location(name)
	w.Header().Set("Location", loc)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, loc)
}

func (a *Adapter) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r) {
		return
	}

	name, ok := fileParam(w, r)
	if !ok {
		return
	}

	if err := a.coord.RemoveFile(r.Context(), name); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *Adapter) handleUsage(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.coord.Usage(r.Context()))
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.coord.Healthcheck(r.Context()); err != nil {
		logger.Warn("[%s] healthcheck failed: %v", requestID(r), err)
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (a *Adapter) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r) {
		return
	}

	if a.reconciler == nil {
		respondMessage(w, http.StatusNotFound, msgNotFound)
		return
	}

	stats, err := a.reconciler.RunNow(r.Context())
	if err != nil {
		if errors.Is(err, reconcile.ErrRunning) {
			respondMessage(w, http.StatusConflict, msgReconcileRunning)
			return
		}
		logger.Error("[%s] reconcile failed: %v", requestID(r), err)
		respondMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (a *Adapter) authorize(w http.ResponseWriter, r *http.Request) bool {
	if err := a.verifier.VerifyRequest(r); err != nil {
		logger.Debug("[%s] %s %s: %v", requestID(r), r.Method, r.URL.Path, err)
		respondMessage(w, http.StatusForbidden, msgForbidden)
		return false
	}
	return true
}

// fileParam returns the {file} route variable. pat matches by prefix, so a
// path with segments past the name is rejected here.
func fileParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.URL.Query().Get(":file")
	if name == "" || strings.TrimPrefix(r.URL.Path, "/files/") != name {
		respondError(w, r, &storage.Error{Kind: storage.KindInvalidName, Op: "route", Name: name, Err: storage.ErrInvalidName})
		return "", false
	}
	return name, true
}
