package api

import (
	"errors"
	"net/http"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/event"
)

type publishEventRequest struct {
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	TenantSlug string         `json:"tenant_slug,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func (h *Handler) publishEvent(w http.ResponseWriter, r *http.Request) {
	var req publishEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	evt := &event.Event{
		Type:       event.Type(req.Type),
		TenantID:   req.TenantID,
		TenantSlug: req.TenantSlug,
		Data:       req.Data,
	}

	if err := h.hub.Publish(r.Context(), evt); err != nil {
		switch {
		case errors.Is(err, hooks.ErrUnknownEventType):
			writeError(w, http.StatusBadRequest, "unknown event type")
		case errors.Is(err, hooks.ErrPayloadValidationFailed):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type eventTypeResponse struct {
	Name          string `json:"name"`
	WireName      string `json:"wire_name"`
	RequiredScope string `json:"required_scope,omitempty"`
	Lifecycle     bool   `json:"lifecycle"`
}

func (h *Handler) listEventTypes(w http.ResponseWriter, _ *http.Request) {
	types := event.All()
	result := make([]eventTypeResponse, 0, len(types))
	for _, t := range types {
		resp := eventTypeResponse{
			Name:      string(t),
			WireName:  t.Dotted(),
			Lifecycle: t.IsLifecycle(),
		}
		if scope, ok := capability.RequiredScope(t); ok && scope != capability.ScopeNone {
			resp.RequiredScope = string(scope)
		}
		result = append(result, resp)
	}
	writeJSON(w, http.StatusOK, result)
}
