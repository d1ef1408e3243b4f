package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/poiesic/tutorder"
	"github.com/poiesic/tutorder/ai"
	"github.com/poiesic/tutorder/artifact"
	"github.com/poiesic/tutorder/document"
	"github.com/poiesic/tutorder/enrich"
	"github.com/poiesic/tutorder/jobs"
	"github.com/poiesic/tutorder/progress"
	"github.com/poiesic/tutorder/tabular"
)

// handleSubmitOrders ingests typed text (form field order_text) or an
// uploaded document (form file "file"), then removes duplicates.
func (s *Server) handleSubmitOrders(w http.ResponseWriter, r *http.Request) {
	text, err := s.orderText(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "order text is required")
		return
	}

	pipeline, err := s.ws.NewIngestionPipeline()
	if err != nil {
		writeStageError(w, err)
		return
	}
	deduper, err := s.ws.NewDeduplicator()
	if err != nil {
		writeStageError(w, err)
		return
	}

	s.submit(w, "ingest", func(ctx context.Context, sink progress.Sink) (jobs.Outcome, error) {
		res, err := pipeline.Run(ctx, text, sink)
		if err != nil {
			return jobs.Outcome{Summary: res.String()}, err
		}
		removed, err := deduper.Run(ctx, nil)
		if err != nil {
			return jobs.Outcome{Summary: res.String()}, err
		}
		return jobs.Outcome{Summary: fmt.Sprintf("%s, removed %d duplicates", res, removed)}, nil
	})
}

func (s *Server) orderText(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			return "", fmt.Errorf("invalid upload: %w", err)
		}
		if f, hdr, err := r.FormFile("file"); err == nil {
			defer f.Close()
			if !document.Allowed(hdr.Filename) {
				return "", fmt.Errorf("%w: %s", document.ErrUnsupportedType, hdr.Filename)
			}
			data, err := io.ReadAll(f)
			if err != nil {
				return "", err
			}
			s.logger.Info("processing uploaded document", "file", hdr.Filename, "bytes", len(data))
			return document.ExtractText(hdr.Filename, data)
		}
	}
	return r.FormValue("order_text"), nil
}

// handleEnrich parses unparsed orders, optionally limited by batch_id.
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var opts []enrich.Option
	if batch := strings.TrimSpace(r.FormValue("batch_id")); batch != "" {
		opts = append(opts, enrich.WithBatch(batch))
	}
	e, err := s.ws.NewEnricher(opts...)
	if err != nil {
		writeStageError(w, err)
		return
	}
	s.submit(w, "enrich", func(ctx context.Context, sink progress.Sink) (jobs.Outcome, error) {
		res, err := e.Run(ctx, sink)
		return jobs.Outcome{Summary: res.String(), Artifact: res.Artifact}, err
	})
}

func (s *Server) handleDedup(w http.ResponseWriter, r *http.Request) {
	d, err := s.ws.NewDeduplicator()
	if err != nil {
		writeStageError(w, err)
		return
	}
	s.submit(w, "dedup", func(ctx context.Context, sink progress.Sink) (jobs.Outcome, error) {
		removed, err := d.Run(ctx, sink)
		return jobs.Outcome{Summary: fmt.Sprintf("removed %d duplicates", removed)}, err
	})
}

// handleCommute takes a table upload (form file "file") and a target
// address (form field "target").
func (s *Server) handleCommute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	target := strings.TrimSpace(r.FormValue("target"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "target address is required")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "table file is required")
		return
	}
	defer f.Close()
	if _, err := tabular.FormatOf(hdr.Filename); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := s.ws.NewAugmenter()
	if err != nil {
		writeStageError(w, err)
		return
	}

	path := filepath.Join(s.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(hdr.Filename)))
	if err := saveUpload(path, f); err != nil {
		s.logger.Error("failed to save upload", "err", err)
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	s.submit(w, "commute", func(ctx context.Context, sink progress.Sink) (jobs.Outcome, error) {
		defer os.Remove(path)
		name, err := a.Run(ctx, path, target, sink)
		return jobs.Outcome{Summary: "commute times written", Artifact: name}, err
	})
}

func saveUpload(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.ws.Orders().CountByBatch(r.Context())
	if err != nil {
		s.logger.Error("failed to list batches", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list batches")
		return
	}
	type batch struct {
		BatchID   string `json:"batch_id"`
		Count     int    `json:"count"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]batch, len(batches))
	for i, b := range batches {
		out[i] = batch{BatchID: b.BatchID, Count: b.Count, CreatedAt: b.CreatedAt.Format("2006-01-02 15:04:05")}
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": out})
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	infos, err := s.ws.Artifacts().List(r.Context())
	if err != nil {
		s.logger.Error("failed to list artifacts", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list artifacts")
		return
	}
	if infos == nil {
		infos = []artifact.Info{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": infos})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rc, err := s.ws.Artifacts().Open(r.Context(), name)
	switch {
	case errors.Is(err, artifact.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, artifact.ErrNotFound):
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	case err != nil:
		s.logger.Error("failed to open artifact", "name", name, "err", err)
		writeError(w, http.StatusInternalServerError, "could not open artifact")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", artifact.ContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("artifact download interrupted", "name", name, "err", err)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.runner.List()})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.runner.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

// handleJobEvents streams "progress" events and a final "status" event.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	events, cancel, err := s.runner.Subscribe(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if job, err := s.runner.Get(id); err == nil && job.Percent > 0 && !job.Done() {
		writeEvent(w, "progress", progress.Event{Percent: job.Percent, Message: job.Message})
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				if job, err := s.runner.Get(id); err == nil {
					writeEvent(w, "status", job)
					flusher.Flush()
				}
				return
			}
			writeEvent(w, "progress", ev)
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) submit(w http.ResponseWriter, stage string, fn jobs.Func) {
	job, err := s.runner.Submit(stage, fn)
	if err != nil {
		s.logger.Error("failed to queue job", "stage", stage, "err", err)
		writeError(w, http.StatusServiceUnavailable, "could not queue job")
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
}

// writeStageError maps construction failures to HTTP statuses. Missing
// credentials are configuration problems on the server side.
func writeStageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		writeError(w, http.StatusServiceUnavailable, "extraction service not configured")
	case errors.Is(err, tutorder.ErrMapsNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "maps services not configured")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeEvent(w io.Writer, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
