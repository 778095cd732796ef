package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/haetable/internal/events"
	"github.com/meltforce/haetable/internal/ingest"
	"github.com/meltforce/haetable/internal/models"
	"github.com/meltforce/haetable/internal/storage"
)

const (
	// maxBodyBytes caps a decoded webhook body.
	maxBodyBytes = 64 << 20

	sideEffectTimeout = 5 * time.Second
)

// webhookResponse is the body of every processed delivery.
type webhookResponse struct {
	Status     string         `json:"status"`
	DeliveryID string         `json:"delivery_id"`
	Result     *ingest.Result `json:"result"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	receivedAt := time.Now()
	id := storage.NewDeliveryID()
	log := s.log.With("delivery_id", id)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("reading webhook body failed", "error", err)
		s.finish(r.Context(), storage.NewDelivery(id, "webhook", receivedAt, time.Since(receivedAt), nil, err.Error()), nil)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading body: " + err.Error()})
		return
	}
	log.Info("webhook received", "bytes", len(body))
	log.Debug("webhook body", "body", string(body))

	var payload models.HAEPayload
	err = json.Unmarshal(body, &payload)
	switch {
	case errors.Is(err, models.ErrLegacyShape):
		log.Warn("rejecting payload in flat array shape", "error", err)
		result := &ingest.Result{Message: "payload ignored: expected {\"data\":{\"metrics\":[...]}}"}
		s.finish(r.Context(), storage.NewDelivery(id, "webhook", receivedAt, time.Since(receivedAt), nil, err.Error()), nil)
		writeJSON(w, http.StatusOK, webhookResponse{Status: "success", DeliveryID: id, Result: result})
		return
	case err != nil:
		log.Warn("invalid webhook JSON", "error", err)
		s.finish(r.Context(), storage.NewDelivery(id, "webhook", receivedAt, time.Since(receivedAt), nil, err.Error()), nil)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	// A delivery runs to completion even if the sender hangs up.
	result := s.hae.Ingest(context.WithoutCancel(r.Context()), &payload)

	d := storage.NewDelivery(id, "webhook", receivedAt, time.Since(receivedAt), result, "")
	s.finish(r.Context(), d, result)
	writeJSON(w, http.StatusOK, webhookResponse{Status: "success", DeliveryID: id, Result: result})
}

// finish journals, counts and publishes a delivery. Failures here are
// logged only; they never change the webhook response.
func (s *Server) finish(ctx context.Context, d storage.Delivery, result *ingest.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.recorder != nil {
		s.recorder.RecordDelivery(d.Status)
	}
	if err := s.journal.Record(ctx, d); err != nil {
		s.log.Warn("journaling delivery failed", "delivery_id", d.ID, "error", err)
	}
	ev := events.Delivery{ID: d.ID, ReceivedAt: d.ReceivedAt, Status: d.Status, Result: result}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publishing delivery event failed", "delivery_id", d.ID, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	deliveries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if deliveries == nil {
		deliveries = []storage.Delivery{}
	}
	writeJSON(w, http.StatusOK, deliveries)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	list, err := s.inspect.ListTables(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleTableDates(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	latest, err := intParam(r, "latest")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	dates, err := s.inspect.TableDates(r.Context(), name, latest)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

// intParam reads an optional non-negative integer query parameter.
func intParam(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
