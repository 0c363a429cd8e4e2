package web

import (
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/quillcms/quill/core/apperr"
	"github.com/quillcms/quill/core/engine"
	"github.com/quillcms/quill/core/query"
	"github.com/quillcms/quill/core/schema"
	"github.com/quillcms/quill/domain/webhook"
)

// writeBody is the request body shape for create, update, and delete.
type writeBody struct {
	Data           any            `json:"data"`
	Where          map[string]any `json:"where"`
	SkipDuplicates bool           `json:"skipDuplicates"`
	Select         map[string]any `json:"select"`
}

// handleCollection dispatches every method on a collection route.
func (s *Server) handleCollection(col schema.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := engine.OperationForMethod(r.Method)
		if !ok {
			s.handleNotFound(w, r)
			return
		}

		// Track whether a hook already wrote the response, so the error
		// boundary does not write a second body.
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		start := time.Now()
		input, err := s.buildInput(r, op)
		if err != nil {
			// Malformed input fails before any hook runs.
			s.writeError(ww, col, op, err)
			return
		}

		var session map[string]any
		if s.sessions != nil {
			session = s.sessions.Resolve(r)
		}
		flags := map[string]bool{"local_request": isLocalRequest(r)}
		rc := engine.NewContext(s.store, s.engine.Registry(), ww, r, session, flags)

		result, err := s.engine.Execute(r.Context(), rc, col, op, input)

		if s.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			s.metrics.OperationsTotal.WithLabelValues(col.Name, string(op), status).Inc()
			s.metrics.OperationDuration.WithLabelValues(col.Name, string(op)).
				Observe(time.Since(start).Seconds())
		}

		if err != nil {
			s.writeError(ww, col, op, err)
			return
		}

		if op == engine.OperationRead && result == nil {
			// Reads always answer with an array.
			result = []map[string]any{}
		}
		if ww.BytesWritten() == 0 {
			writeJSON(ww, http.StatusOK, result)
		}

		// Fan out only after the response has been produced, and never for
		// a request that was cancelled mid-pipeline.
		if r.Context().Err() != nil {
			return
		}
		s.fanout.Dispatch(webhook.Event{
			Operation:  string(op),
			Collection: col.Name,
			Data:       result,
			Timestamp:  time.Now(),
		}, s.webhooks[col.Name])
	}
}

// buildInput decodes the request into the engine's input. The read query is
// normalized here so a malformed filter stops the request before the hook
// chain starts.
func (s *Server) buildInput(r *http.Request, op engine.Operation) (*engine.Input, error) {
	if op == engine.OperationRead {
		q, err := query.Normalize(r.URL.Query())
		if err != nil {
			return nil, err
		}
		return &engine.Input{Query: q}, nil
	}

	var body writeBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, apperr.Malformed("invalid JSON body: %v", err)
		}
	}

	return &engine.Input{
		Data:           body.Data,
		Where:          body.Where,
		SkipDuplicates: body.SkipDuplicates,
		Select:         body.Select,
	}, nil
}

// writeError is the per-request error boundary: it logs the error and
// writes the JSON error body if nothing has been written yet. An
// access-denied hook may have written its own response; in that case the
// boundary only logs.
func (s *Server) writeError(w chimiddleware.WrapResponseWriter, col schema.Collection, op engine.Operation, err error) {
	status := apperr.HTTPStatus(err)

	evt := s.logger.Error()
	if apperr.KindOf(err) == apperr.KindAccessDenied {
		// A veto is a normal negative outcome, not a failure.
		evt = s.logger.Info()
	}
	evt.
		Err(err).
		Str("collection", col.Name).
		Str("operation", string(op)).
		Int("status", status).
		Msg("request failed")

	if w.BytesWritten() > 0 {
		return
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": err.Error(),
	})
}
