package api

import (
	"errors"
	"net/http"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/subscription"
)

type createSubscriptionRequest struct {
	TenantID   string            `json:"tenant_id"`
	Name       string            `json:"name,omitempty"`
	URL        string            `json:"url"`
	Secret     string            `json:"secret,omitempty"`
	EventType  string            `json:"event_type"`
	APIVersion string            `json:"api_version,omitempty"`
	MaxRetries int               `json:"max_retries,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	RateLimit  int               `json:"rate_limit,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := subscription.Input{
		TenantID:   req.TenantID,
		Name:       req.Name,
		URL:        req.URL,
		Secret:     req.Secret,
		EventType:  event.Type(req.EventType),
		APIVersion: req.APIVersion,
		MaxRetries: req.MaxRetries,
		Headers:    req.Headers,
		RateLimit:  req.RateLimit,
		Metadata:   req.Metadata,
	}

	sub, err := h.hub.Subscriptions().Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, hooks.ErrDuplicateSubscription) {
			writeError(w, http.StatusConflict, "subscription already exists for this url and event type")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	tenantID := queryParam(r, "tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id query parameter is required")
		return
	}

	opts := subscription.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	if activeStr := queryParam(r, "active"); activeStr != "" {
		active := activeStr == "true"
		opts.Active = &active
	}

	subs, err := h.hub.Subscriptions().List(r.Context(), tenantID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	sub, getErr := h.hub.Subscriptions().Get(r.Context(), subID)
	if getErr != nil {
		if errors.Is(getErr, hooks.ErrSubscriptionNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) updateSubscription(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	var req createSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := subscription.Input{
		Name:       req.Name,
		URL:        req.URL,
		EventType:  event.Type(req.EventType),
		APIVersion: req.APIVersion,
		MaxRetries: req.MaxRetries,
		Headers:    req.Headers,
		RateLimit:  req.RateLimit,
		Metadata:   req.Metadata,
	}

	sub, updateErr := h.hub.Subscriptions().Update(r.Context(), subID, input)
	if updateErr != nil {
		switch {
		case errors.Is(updateErr, hooks.ErrSubscriptionNotFound):
			writeError(w, http.StatusNotFound, "subscription not found")
		case errors.Is(updateErr, hooks.ErrDuplicateSubscription):
			writeError(w, http.StatusConflict, "subscription already exists for this url and event type")
		default:
			writeError(w, http.StatusBadRequest, updateErr.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	if deleteErr := h.hub.Subscriptions().Delete(r.Context(), subID); deleteErr != nil {
		if errors.Is(deleteErr, hooks.ErrSubscriptionNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, deleteErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pauseSubscription(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

func (h *Handler) resumeSubscription(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *Handler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	svc := h.hub.Subscriptions()
	var setErr error
	if paused {
		setErr = svc.Pause(r.Context(), subID)
	} else {
		setErr = svc.Resume(r.Context(), subID)
	}
	if setErr != nil {
		if errors.Is(setErr, hooks.ErrSubscriptionNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, setErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	newSecret, rotateErr := h.hub.Subscriptions().RotateSecret(r.Context(), subID)
	if rotateErr != nil {
		if errors.Is(rotateErr, hooks.ErrSubscriptionNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, rotateErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": newSecret})
}

func (h *Handler) testSubscription(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	rec, testErr := h.hub.TestDelivery(r.Context(), subID)
	if testErr != nil {
		if errors.Is(testErr, hooks.ErrSubscriptionNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, testErr.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, rec)
}
