package api

import (
	"errors"
	"net/http"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
)

type registerInstallationRequest struct {
	TenantID      string   `json:"tenant_id"`
	AppName       string   `json:"app_name"`
	ClientID      string   `json:"client_id"`
	WebhookURL    string   `json:"webhook_url,omitempty"`
	GrantedScopes []string `json:"granted_scopes,omitempty"`
}

func (h *Handler) registerInstallation(w http.ResponseWriter, r *http.Request) {
	var req registerInstallationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scopes := make([]capability.Scope, len(req.GrantedScopes))
	for i, sc := range req.GrantedScopes {
		scopes[i] = capability.Scope(sc)
	}

	input := installation.Input{
		TenantID:      req.TenantID,
		AppName:       req.AppName,
		ClientID:      req.ClientID,
		WebhookURL:    req.WebhookURL,
		GrantedScopes: scopes,
	}

	inst, err := h.hub.Installations().Register(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, inst)
}

func (h *Handler) listInstallations(w http.ResponseWriter, r *http.Request) {
	tenantID := queryParam(r, "tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id query parameter is required")
		return
	}

	opts := installation.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	insts, err := h.hub.Installations().List(r.Context(), tenantID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, insts)
}

func (h *Handler) getInstallation(w http.ResponseWriter, r *http.Request) {
	instID, err := id.ParseInstallationID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid installation ID")
		return
	}

	inst, getErr := h.hub.Installations().Get(r.Context(), instID)
	if getErr != nil {
		if errors.Is(getErr, hooks.ErrInstallationNotFound) {
			writeError(w, http.StatusNotFound, "installation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, inst)
}

func (h *Handler) revokeInstallation(w http.ResponseWriter, r *http.Request) {
	instID, err := id.ParseInstallationID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid installation ID")
		return
	}

	if revokeErr := h.hub.Installations().Revoke(r.Context(), instID); revokeErr != nil {
		if errors.Is(revokeErr, hooks.ErrInstallationNotFound) {
			writeError(w, http.StatusNotFound, "installation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, revokeErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
