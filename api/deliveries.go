package api

import (
	"errors"
	"net/http"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/id"
)

func (h *Handler) listSubscriptionDeliveries(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	records, listErr := h.hub.Store().ListDeliveriesBySubscription(r.Context(), subID, deliveryListOpts(r))
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantID := queryParam(r, "tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id query parameter is required")
		return
	}

	records, err := h.hub.Store().ListDeliveriesByTenant(r.Context(), tenantID, deliveryListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	recID, err := id.ParseDeliveryID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	rec, getErr := h.hub.Store().GetDelivery(r.Context(), recID)
	if getErr != nil {
		if errors.Is(getErr, hooks.ErrDeliveryNotFound) {
			writeError(w, http.StatusNotFound, "delivery not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) getDeliveryByEvent(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("eventId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	rec, getErr := h.hub.Store().GetDeliveryByEventID(r.Context(), evtID)
	if getErr != nil {
		if errors.Is(getErr, hooks.ErrDeliveryNotFound) {
			writeError(w, http.StatusNotFound, "delivery not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) retryDelivery(w http.ResponseWriter, r *http.Request) {
	recID, err := id.ParseDeliveryID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	if retryErr := h.hub.RetryDelivery(r.Context(), recID); retryErr != nil {
		switch {
		case errors.Is(retryErr, hooks.ErrDeliveryNotFound):
			writeError(w, http.StatusNotFound, "delivery not found")
		case errors.Is(retryErr, hooks.ErrRetryNotAllowed):
			writeError(w, http.StatusConflict, "delivery already succeeded")
		default:
			writeError(w, http.StatusInternalServerError, retryErr.Error())
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func deliveryListOpts(r *http.Request) delivery.ListOpts {
	opts := delivery.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	if statusStr := queryParam(r, "status"); statusStr != "" {
		status := delivery.Status(statusStr)
		opts.Status = &status
	}
	return opts
}
