package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sightspeak/internal/assistant"
	"sightspeak/internal/manager"
	"sightspeak/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Manager satisfies it.
type Service interface {
	GenerateStreaming(ctx context.Context, prompt string, image []byte) *manager.Stream
	GenerateBlocking(ctx context.Context, prompt string) string
	Cancel()
	Reset() error
	Status() types.StatusResponse
	MemoryItems() []types.MemoryItem
	Ready() bool
}

// ModelLister lists the models available on disk.
type ModelLister interface {
	ListModels() []types.Model
}

// HistoryReader returns recent transcript entries, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, n int) ([]types.TranscriptEntry, error)
}

// Option adds optional endpoints to the mux.
type Option func(*routes)

// WithModels serves GET /models from l.
func WithModels(l ModelLister) Option { return func(rt *routes) { rt.models = l } }

// WithHistory serves GET /history from h.
func WithHistory(h HistoryReader) Option { return func(rt *routes) { rt.history = h } }

type routes struct {
	svc     Service
	models  ModelLister
	history HistoryReader
}

func NewMux(svc Service, opts ...Option) http.Handler {
	rt := &routes{svc: svc}
	for _, o := range opts {
		o(rt)
	}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// JSON endpoints are compressed; the NDJSON streams are not, so tokens
	// reach the client as they are flushed.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/status", rt.handleStatus)
		r.Get("/memory", rt.handleMemory)
		r.Get("/history", rt.handleHistory)
		r.Get("/models", rt.handleModels)
		r.Post("/ask/sync", rt.handleAskSync)
	})
	r.Post("/ask", rt.handleAsk)
	r.Post("/describe", rt.handleDescribe)
	r.Post("/cancel", rt.handleCancel)
	r.Post("/reset", rt.handleReset)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("closed"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

// handleStatus godoc
// @Summary      Manager status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (rt *routes) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.svc.Status())
}

// handleMemory godoc
// @Summary      Conversation memory, oldest first
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.MemoryResponse
// @Router       /memory [get]
func (rt *routes) handleMemory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.MemoryResponse{Entries: rt.svc.MemoryItems()})
}

// handleHistory godoc
// @Summary      Recent transcript entries, newest first
// @Tags         status
// @Produce      json
// @Param        limit  query  int  false  "max entries"  default(20)
// @Success      200  {object}  types.HistoryResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /history [get]
func (rt *routes) handleHistory(w http.ResponseWriter, r *http.Request) {
	if rt.history == nil {
		writeJSONError(w, http.StatusNotFound, "transcript disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := rt.history.Recent(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []types.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, types.HistoryResponse{Entries: entries})
}

// handleModels godoc
// @Summary      Models found in the models directory
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (rt *routes) handleModels(w http.ResponseWriter, r *http.Request) {
	models := []types.Model{}
	if rt.models != nil {
		models = append(models, rt.models.ListModels()...)
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
}

// handleAsk godoc
// @Summary      Stream a text answer
// @Description  Streams NDJSON StreamEvent lines; the last line has final=true.
// @Tags         generate
// @Accept       json
// @Produce      application/x-ndjson
// @Param        request  body  types.AskRequest  true  "question"
// @Success      200  {object}  types.StreamEvent
// @Failure      400  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Router       /ask [post]
func (rt *routes) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req types.AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	rt.stream(w, r, "text", req.Prompt, nil)
}

// handleDescribe godoc
// @Summary      Stream a description of an image
// @Description  A request arriving while another generation runs gets 429.
// @Tags         generate
// @Accept       json
// @Produce      application/x-ndjson
// @Param        request  body  types.DescribeRequest  true  "image and optional prompt"
// @Success      200  {object}  types.StreamEvent
// @Failure      400  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Router       /describe [post]
func (rt *routes) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req types.DescribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ImageBase64 == "" {
		writeJSONError(w, http.StatusBadRequest, "image_base64 is required")
		return
	}
	img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil || len(img) == 0 {
		writeJSONError(w, http.StatusBadRequest, "image_base64 is not valid base64")
		return
	}
	prompt := req.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = assistant.DefaultScenePrompt
	}
	rt.stream(w, r, "vision", prompt, img)
}

// handleAskSync godoc
// @Summary      Answer a question without streaming
// @Tags         generate
// @Accept       json
// @Produce      json
// @Param        request  body  types.AskRequest  true  "question"
// @Success      200  {object}  types.SyncResponse
// @Failure      429  {object}  types.ErrorResponse
// @Router       /ask/sync [post]
func (rt *routes) handleAskSync(w http.ResponseWriter, r *http.Request) {
	var req types.AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	answer := rt.svc.GenerateBlocking(ctx, req.Prompt)
	if answer == manager.BusySentinel {
		CountRejection("busy")
		writeJSONError(w, http.StatusTooManyRequests, answer)
		return
	}
	writeJSON(w, http.StatusOK, types.SyncResponse{Answer: answer})
}

// handleCancel godoc
// @Summary      Cancel the running streaming generation
// @Tags         control
// @Success      204
// @Router       /cancel [post]
func (rt *routes) handleCancel(w http.ResponseWriter, r *http.Request) {
	rt.svc.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// handleReset godoc
// @Summary      Clear memory and start a fresh session
// @Tags         control
// @Success      204
// @Failure      409  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /reset [post]
func (rt *routes) handleReset(w http.ResponseWriter, r *http.Request) {
	err := rt.svc.Reset()
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, manager.ErrGenerationInFlight):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		writeJSONError(w, statusFor(err), err.Error())
	}
}

// stream runs one streaming generation and writes its events as NDJSON.
// A request rejected up front (busy, closed) is answered with a JSON error
// instead of a stream.
func (rt *routes) stream(w http.ResponseWriter, r *http.Request, kind, prompt string, image []byte) {
	start := time.Now()
	rid := middleware.GetReqID(r.Context())
	log := requestLogger(r).With().Str("path", r.URL.Path).Str("kind", kind).Str("http_request_id", rid).Logger()
	log.Info().Int("prompt_len", len(prompt)).Msg("generate start")

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if requestTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, requestTimeout)
		defer tcancel()
	}
	s := rt.svc.GenerateStreaming(ctx, prompt, image)

	var first manager.Event
	select {
	case ev, ok := <-s.Events():
		if !ok {
			return
		}
		first = ev
	case <-ctx.Done():
		s.Cancel()
		s.Abandon()
		return
	}
	firstEventSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if first.Final && first.Kind == manager.KindBusy {
		CountRejection("busy")
		writeJSONError(w, http.StatusTooManyRequests, first.Text)
		log.Info().Int("status", http.StatusTooManyRequests).Dur("dur", time.Since(start)).Msg("generate end")
		return
	}
	if first.Final && errors.Is(first.Err, manager.ErrClosed) {
		CountRejection("closed")
		writeJSONError(w, http.StatusServiceUnavailable, first.Err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Request-ID", s.ID)
	w.WriteHeader(http.StatusOK)
	streamsOpen.Inc()
	defer streamsOpen.Dec()
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	write := func(ev manager.Event) bool {
		se := toStreamEvent(s.ID, ev)
		log.Debug().Str("request_id", s.ID).Str("ev_kind", se.Kind).Str("text", se.Text).Msg("generate>")
		if err := enc.Encode(se); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	final := first
	ok := write(first)
	for ok && !final.Final {
		select {
		case ev, open := <-s.Events():
			if !open {
				ok = false
				break
			}
			final = ev
			ok = write(ev)
		case <-ctx.Done():
			ok = false
		}
	}
	outcome := final.Kind.String()
	if !ok || !final.Final {
		// client went away or shutdown: stop the generation
		s.Cancel()
		s.Abandon()
		outcome = "disconnected"
	}
	observeStream(kind, outcome)
	log.Info().Int("status", http.StatusOK).Str("request_id", s.ID).Str("outcome", outcome).Dur("dur", time.Since(start)).Msg("generate end")
}

func toStreamEvent(id string, ev manager.Event) types.StreamEvent {
	se := types.StreamEvent{RequestID: id, Text: ev.Text, Final: ev.Final, Kind: ev.Kind.String()}
	if ev.Err != nil {
		se.Error = publicError(ev)
	}
	return se
}

// publicError keeps raw engine detail out of the stream; the notice text
// already tells the user what happened.
func publicError(ev manager.Event) string {
	switch ev.Kind {
	case manager.KindOverflow:
		return manager.ErrContextOverflow.Error()
	case manager.KindTimeout:
		return manager.ErrTimeoutExpired.Error()
	case manager.KindCancelled:
		return "cancelled"
	default:
		return "generation failed"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			CountRejection("body_too_large")
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger().Error().Err(err).Msg("encode response")
	}
}
