package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Cypherspark/webhook-ingest/internal/config"
	"github.com/Cypherspark/webhook-ingest/internal/core"
	"github.com/Cypherspark/webhook-ingest/internal/metrics"
	"github.com/Cypherspark/webhook-ingest/internal/store"
)

type Server struct {
	cfg    config.Config
	store  store.MessageStore
	logger zerolog.Logger
}

func NewServer(cfg config.Config, st store.MessageStore, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, store: st, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, logRequests(s.logger), instrument, middleware.Recoverer)

	webhook := s.webhook
	if s.cfg.WebhookRateLimit > 0 {
		burst := int(s.cfg.WebhookRateLimit)
		if burst < 1 {
			burst = 1
		}
		webhook = rateLimited(rate.NewLimiter(rate.Limit(s.cfg.WebhookRateLimit), burst), webhook)
	}
	r.Post("/webhook", webhook)
	r.Get("/messages", s.listMessages)
	r.Get("/stats", s.stats)
	s.mountHealth(r)
	s.mountMetrics(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFieldErrors renders the 422 body shared by schema violations and
// bad query parameters.
func writeFieldErrors(w http.ResponseWriter, fields []core.FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": fields})
}

// messageJSON is the wire shape of one stored message.
type messageJSON struct {
	MessageID string  `json:"message_id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Ts        string  `json:"ts"`
	Text      *string `json:"text"`
}

func toMessageJSON(m core.Message) messageJSON {
	return messageJSON{
		MessageID: m.MessageID,
		From:      m.From,
		To:        m.To,
		Ts:        m.Ts.UTC().Format(time.RFC3339Nano),
		Text:      m.Text,
	}
}

// webhook ingests one signed message: signature gate, then schema
// validation, then idempotent insert. Created and duplicate share one
// success response so callers can retry blindly.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Raw bytes exactly as received; the signature covers them, so no
	// decoding happens before verification.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.finishWebhook(r, "", false, "error", start)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to read body"})
		return
	}

	if !core.VerifySignature(body, r.Header.Get("X-Signature"), s.cfg.WebhookSecret) {
		s.finishWebhook(r, "", false, "invalid_signature", start)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid signature"})
		return
	}

	var req core.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.finishWebhook(r, "", false, "validation_error", start)
		writeFieldErrors(w, []core.FieldError{{Field: "body", Detail: "invalid JSON"}})
		return
	}

	msg, verr := core.ValidateWebhook(req)
	if verr != nil {
		id := ""
		if req.MessageID != nil {
			id = *req.MessageID
		}
		s.finishWebhook(r, id, false, "validation_error", start)
		writeFieldErrors(w, verr.Fields)
		return
	}

	outcome, err := s.store.Insert(r.Context(), msg)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("request_id", RequestID(r.Context())).
			Str("message_id", msg.MessageID).
			Msg("insert failed")
		metrics.WebhookRequests.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to store message"})
		return
	}

	s.finishWebhook(r, msg.MessageID, outcome == store.OutcomeDuplicate, outcome.String(), start)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) finishWebhook(r *http.Request, messageID string, dup bool, result string, start time.Time) {
	metrics.WebhookRequests.WithLabelValues(result).Inc()
	evt := s.logger.Info().
		Str("request_id", RequestID(r.Context())).
		Str("result", result).
		Bool("duplicate", dup).
		Dur("latency", time.Since(start))
	if messageID != "" {
		evt = evt.Str("message_id", messageID)
	}
	evt.Msg("webhook processed")
}

// listMessages serves filtered, deterministically ordered pages.
// Non-integer limit/offset and unparseable since are validation errors;
// out-of-range integers are clamped.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	var fields []core.FieldError
	lq := store.ListQuery{
		From: r.URL.Query().Get("from"),
		Q:    r.URL.Query().Get("q"),
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "limit", Detail: "must be an integer"})
		} else {
			lq.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "offset", Detail: "must be an integer"})
		} else {
			lq.Offset = n
		}
	}
	if v := r.URL.Query().Get("since"); v != "" {
		ts, err := core.ParseUTCTimestamp(v)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "since", Detail: err.Error()})
		} else {
			lq.Since = &ts
		}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	// Normalize before querying so the echoed limit/offset are the
	// values actually applied.
	lq = lq.Normalize()
	msgs, total, err := s.store.List(r.Context(), lq)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("list failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to query messages"})
		return
	}

	data := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		data = append(data, toMessageJSON(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   data,
		"total":  total,
		"limit":  lq.Limit,
		"offset": lq.Offset,
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("stats failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to compute stats"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}
