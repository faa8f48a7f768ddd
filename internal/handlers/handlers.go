package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"sms-hub/internal/models"
	"sms-hub/internal/services/kavenegar"
	"sms-hub/internal/trigger"
)

// Operator runs stateless gateway operations.
type Operator interface {
	InvokeOperation(ctx context.Context, kind string, params map[string]string) (json.RawMessage, error)
}

// Registry looks up trigger instances by name.
type Registry interface {
	Instance(name string) *trigger.Instance
	Instances() []*trigger.Instance
}

type Handler struct {
	operator Operator
	triggers Registry
	dispatch trigger.BatchHandler
	logger   *zap.Logger
}

type triggerStatus struct {
	Name         string `json:"name"`
	LineNumber   string `json:"lineNumber"`
	PollInterval int    `json:"pollInterval"`
	Phase        string `json:"phase"`
}

func NewHandler(operator Operator, triggers Registry, dispatch trigger.BatchHandler, logger *zap.Logger) *Handler {
	return &Handler{
		operator: operator,
		triggers: triggers,
		dispatch: dispatch,
		logger:   logger,
	}
}

// Register mounts the API routes on router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/triggers", h.HandleListTriggers).Methods(http.MethodGet)
	router.HandleFunc("/triggers/{name}/poll", h.HandlePoll).Methods(http.MethodPost)
	router.HandleFunc("/operations/{kind}", h.HandleOperation).Methods(http.MethodPost)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleListTriggers(w http.ResponseWriter, r *http.Request) {
	instances := h.triggers.Instances()
	statuses := make([]triggerStatus, 0, len(instances))
	for _, inst := range instances {
		cfg := inst.Config()
		statuses = append(statuses, triggerStatus{
			Name:         cfg.Name,
			LineNumber:   cfg.LineNumber,
			PollInterval: int(cfg.PollInterval.Seconds()),
			Phase:        inst.Phase().String(),
		})
	}
	h.writeJSON(w, http.StatusOK, statuses)
}

// HandlePoll runs one cycle immediately. Fetched messages are consumed on
// the gateway, so a non-empty batch is dispatched to the processors as well
// as returned.
func (h *Handler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	inst := h.triggers.Instance(name)
	if inst == nil {
		http.Error(w, "Unknown trigger", http.StatusNotFound)
		return
	}

	batch, err := inst.TryPoll(r.Context())
	if err != nil {
		h.logger.Error("Manual poll failed",
			zap.String("trigger", name),
			zap.String("line_number", inst.Config().LineNumber),
			zap.Error(err))

		var cpErr *trigger.CheckpointError
		switch {
		case errors.Is(err, trigger.ErrCycleInProgress):
			http.Error(w, "Poll cycle in progress", http.StatusConflict)
		case models.IsConfigurationError(err):
			http.Error(w, "Trigger misconfigured", http.StatusInternalServerError)
		case errors.As(err, &cpErr):
			http.Error(w, "Checkpoint unavailable", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Gateway unavailable", http.StatusBadGateway)
		}
		return
	}

	if batch == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if h.dispatch != nil {
		h.dispatch(r.Context(), batch)
	}
	h.writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) HandleOperation(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if !slices.Contains(kavenegar.Operations(), kind) {
		http.Error(w, "Unknown operation", http.StatusNotFound)
		return
	}

	var params map[string]string
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	body, err := h.operator.InvokeOperation(r.Context(), kind, params)
	if err != nil {
		h.logger.Error("Operation failed", zap.String("operation", kind), zap.Error(err))
		switch {
		case models.IsConfigurationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case kavenegar.IsGatewayError(err) && len(body) > 0:
			h.writeRaw(w, http.StatusBadGateway, body)
		default:
			http.Error(w, "Gateway unavailable", http.StatusBadGateway)
		}
		return
	}

	h.writeRaw(w, http.StatusOK, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
