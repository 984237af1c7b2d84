package api

import (
	"net/http"

	"github.com/xraph/forge"

	hooks "github.com/storekit/hooks"
	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/delivery"
	"github.com/storekit/hooks/event"
	"github.com/storekit/hooks/id"
	"github.com/storekit/hooks/installation"
	"github.com/storekit/hooks/subscription"
)

// ForgeAPI wires all Forge-style HTTP handlers together.
type ForgeAPI struct {
	hub *hooks.Hub
	log forge.Logger
}

// NewForgeAPI creates a ForgeAPI around a hub.
func NewForgeAPI(hub *hooks.Hub, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{hub: hub, log: log}
}

// RegisterRoutes registers all hooks admin API routes into the given Forge
// router with full OpenAPI metadata.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerSubscriptionRoutes(router)
	a.registerInstallationRoutes(router)
	a.registerEventRoutes(router)
	a.registerDeliveryRoutes(router)
	a.registerStatsRoutes(router)
}

// ---------------------------------------------------------------------------
// Subscription routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerSubscriptionRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("subscriptions"))

	if err := g.POST("/subscriptions", a.createSubscriptionForge,
		forge.WithSummary("Create subscription"),
		forge.WithDescription("Creates a webhook subscription for a single event type. The signing secret is generated when omitted."),
		forge.WithOperationID("createSubscription"),
		forge.WithRequestSchema(CreateSubscriptionForgeRequest{}),
		forge.WithCreatedResponse(subscription.Subscription{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register createSubscription route", forge.Error(err))
	}

	if err := g.GET("/subscriptions", a.listSubscriptionsForge,
		forge.WithSummary("List subscriptions"),
		forge.WithDescription("Returns a paginated list of subscriptions for a tenant."),
		forge.WithOperationID("listSubscriptions"),
		forge.WithRequestSchema(ListSubscriptionsForgeRequest{}),
		forge.WithListResponse(subscription.Subscription{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listSubscriptions route", forge.Error(err))
	}

	if err := g.GET("/subscriptions/:subscriptionId", a.getSubscriptionForge,
		forge.WithSummary("Get subscription"),
		forge.WithDescription("Returns details of a specific subscription."),
		forge.WithOperationID("getSubscription"),
		forge.WithResponseSchema(http.StatusOK, "Subscription details", subscription.Subscription{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getSubscription route", forge.Error(err))
	}

	if err := g.PUT("/subscriptions/:subscriptionId", a.updateSubscriptionForge,
		forge.WithSummary("Update subscription"),
		forge.WithDescription("Updates a subscription's URL, event type, headers, or retry settings."),
		forge.WithOperationID("updateSubscription"),
		forge.WithRequestSchema(UpdateSubscriptionForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated subscription", subscription.Subscription{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register updateSubscription route", forge.Error(err))
	}

	if err := g.DELETE("/subscriptions/:subscriptionId", a.deleteSubscriptionForge,
		forge.WithSummary("Delete subscription"),
		forge.WithDescription("Permanently removes a subscription."),
		forge.WithOperationID("deleteSubscription"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deleteSubscription route", forge.Error(err))
	}

	if err := g.PATCH("/subscriptions/:subscriptionId/pause", a.pauseSubscriptionForge,
		forge.WithSummary("Pause subscription"),
		forge.WithDescription("Pauses delivery to a subscription without removing it."),
		forge.WithOperationID("pauseSubscription"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register pauseSubscription route", forge.Error(err))
	}

	if err := g.PATCH("/subscriptions/:subscriptionId/resume", a.resumeSubscriptionForge,
		forge.WithSummary("Resume subscription"),
		forge.WithDescription("Resumes delivery to a paused subscription."),
		forge.WithOperationID("resumeSubscription"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register resumeSubscription route", forge.Error(err))
	}

	if err := g.POST("/subscriptions/:subscriptionId/rotate-secret", a.rotateSecretForge,
		forge.WithSummary("Rotate signing secret"),
		forge.WithDescription("Generates a new signing secret for the subscription and returns it once."),
		forge.WithOperationID("rotateSubscriptionSecret"),
		forge.WithResponseSchema(http.StatusOK, "New secret", SecretForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register rotateSubscriptionSecret route", forge.Error(err))
	}

	if err := g.POST("/subscriptions/:subscriptionId/test", a.testSubscriptionForge,
		forge.WithSummary("Send test delivery"),
		forge.WithDescription("Sends a synthetic ping event to the subscription and returns the delivery record."),
		forge.WithOperationID("testSubscription"),
		forge.WithResponseSchema(http.StatusAccepted, "Delivery record", delivery.Record{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register testSubscription route", forge.Error(err))
	}
}

func (a *ForgeAPI) createSubscriptionForge(ctx forge.Context, req *CreateSubscriptionForgeRequest) (*subscription.Subscription, error) {
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

	sub, err := a.hub.Subscriptions().Create(ctx.Context(), input)
	if err != nil {
		return nil, mapError(err)
	}

	err = ctx.JSON(http.StatusCreated, sub)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listSubscriptionsForge(ctx forge.Context, req *ListSubscriptionsForgeRequest) ([]*subscription.Subscription, error) {
	if req.TenantID == "" {
		return nil, forge.BadRequest("tenant_id is required")
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := subscription.ListOpts{
		Offset: req.Offset,
		Limit:  limit,
	}
	if req.Active != "" {
		active := req.Active == "true"
		opts.Active = &active
	}

	subs, err := a.hub.Subscriptions().List(ctx.Context(), req.TenantID, opts)
	if err != nil {
		return nil, mapError(err)
	}

	return subs, nil
}

func (a *ForgeAPI) getSubscriptionForge(ctx forge.Context, req *GetSubscriptionForgeRequest) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(req.SubscriptionID)
	if err != nil {
		return nil, forge.BadRequest("invalid subscription ID")
	}

	sub, getErr := a.hub.Subscriptions().Get(ctx.Context(), subID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return sub, nil
}

func (a *ForgeAPI) updateSubscriptionForge(ctx forge.Context, req *UpdateSubscriptionForgeRequest) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(req.SubscriptionID)
	if err != nil {
		return nil, forge.BadRequest("invalid subscription ID")
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

	sub, updateErr := a.hub.Subscriptions().Update(ctx.Context(), subID, input)
	if updateErr != nil {
		return nil, mapError(updateErr)
	}

	return sub, nil
}

func (a *ForgeAPI) deleteSubscriptionForge(ctx forge.Context, req *DeleteSubscriptionForgeRequest) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(req.SubscriptionID)
	if err != nil {
		return nil, forge.BadRequest("invalid subscription ID")
	}

	if deleteErr := a.hub.Subscriptions().Delete(ctx.Context(), subID); deleteErr != nil {
		return nil, mapError(deleteErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) pauseSubscriptionForge(ctx forge.Context, req *SubscriptionActionForgeRequest) (*subscription.Subscription, error) {
	return a.setPausedForge(ctx, req, true)
}

func (a *ForgeAPI) resumeSubscriptionForge(ctx forge.Context, req *SubscriptionActionForgeRequest) (*subscription.Subscription, error) {
	return a.setPausedForge(ctx, req, false)
}

func (a *ForgeAPI) setPausedForge(ctx forge.Context, req *SubscriptionActionForgeRequest, paused bool) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(req.SubscriptionID)
	if err != nil {
		return nil, forge.BadRequest("invalid subscription ID")
	}

	svc := a.hub.Subscriptions()
	var setErr error
	if paused {
		setErr = svc.Pause(ctx.Context(), subID)
	} else {
		setErr = svc.Resume(ctx.Context(), subID)
	}
	if setErr != nil {
		return nil, mapError(setErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) rotateSecretForge(ctx forge.Context, req *SubscriptionActionForgeRequest) (*SecretForgeResponse, error) {
	subID, err := id.ParseSubscriptionID(req.SubscriptionID)
	if err != nil {
		return nil, forge.BadRequest("invalid subscription ID")
	}

	newSecret, rotateErr := a.hub.Subscriptions().RotateSecret(ctx.Context(), subID)
	if rotateErr != nil {
		return nil, mapError(rotateErr)
	}

	return &SecretForgeResponse{Secret: newSecret}, nil
}

func (a *ForgeAPI) testSubscriptionForge(ctx forge.Context, req *SubscriptionActionForgeRequest) (*delivery.Record, error) {
	subID, err := id.ParseSubscriptionID(req.SubscriptionID)
	if err != nil {
		return nil, forge.BadRequest("invalid subscription ID")
	}

	rec, testErr := a.hub.TestDelivery(ctx.Context(), subID)
	if testErr != nil {
		return nil, mapError(testErr)
	}

	err = ctx.JSON(http.StatusAccepted, rec)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

// ---------------------------------------------------------------------------
// Installation routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerInstallationRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("installations"))

	if err := g.POST("/installations", a.registerInstallationForge,
		forge.WithSummary("Register installation"),
		forge.WithDescription("Registers an app installation with its granted capability scopes."),
		forge.WithOperationID("registerInstallation"),
		forge.WithRequestSchema(RegisterInstallationForgeRequest{}),
		forge.WithCreatedResponse(installation.Installation{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register registerInstallation route", forge.Error(err))
	}

	if err := g.GET("/installations", a.listInstallationsForge,
		forge.WithSummary("List installations"),
		forge.WithDescription("Returns a paginated list of installations for a tenant."),
		forge.WithOperationID("listInstallations"),
		forge.WithRequestSchema(ListInstallationsForgeRequest{}),
		forge.WithListResponse(installation.Installation{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listInstallations route", forge.Error(err))
	}

	if err := g.GET("/installations/:installationId", a.getInstallationForge,
		forge.WithSummary("Get installation"),
		forge.WithDescription("Returns details of a specific installation."),
		forge.WithOperationID("getInstallation"),
		forge.WithResponseSchema(http.StatusOK, "Installation details", installation.Installation{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getInstallation route", forge.Error(err))
	}

	if err := g.DELETE("/installations/:installationId", a.revokeInstallationForge,
		forge.WithSummary("Revoke installation"),
		forge.WithDescription("Revokes an installation so it no longer receives events."),
		forge.WithOperationID("revokeInstallation"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register revokeInstallation route", forge.Error(err))
	}
}

func (a *ForgeAPI) registerInstallationForge(ctx forge.Context, req *RegisterInstallationForgeRequest) (*installation.Installation, error) {
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

	inst, err := a.hub.Installations().Register(ctx.Context(), input)
	if err != nil {
		return nil, mapError(err)
	}

	err = ctx.JSON(http.StatusCreated, inst)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listInstallationsForge(ctx forge.Context, req *ListInstallationsForgeRequest) ([]*installation.Installation, error) {
	if req.TenantID == "" {
		return nil, forge.BadRequest("tenant_id is required")
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := installation.ListOpts{
		Offset: req.Offset,
		Limit:  limit,
	}

	insts, err := a.hub.Installations().List(ctx.Context(), req.TenantID, opts)
	if err != nil {
		return nil, mapError(err)
	}

	return insts, nil
}

func (a *ForgeAPI) getInstallationForge(ctx forge.Context, req *GetInstallationForgeRequest) (*installation.Installation, error) {
	instID, err := id.ParseInstallationID(req.InstallationID)
	if err != nil {
		return nil, forge.BadRequest("invalid installation ID")
	}

	inst, getErr := a.hub.Installations().Get(ctx.Context(), instID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return inst, nil
}

func (a *ForgeAPI) revokeInstallationForge(ctx forge.Context, req *RevokeInstallationForgeRequest) (*installation.Installation, error) {
	instID, err := id.ParseInstallationID(req.InstallationID)
	if err != nil {
		return nil, forge.BadRequest("invalid installation ID")
	}

	if revokeErr := a.hub.Installations().Revoke(ctx.Context(), instID); revokeErr != nil {
		return nil, mapError(revokeErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

// ---------------------------------------------------------------------------
// Event routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerEventRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("events"))

	if err := g.POST("/events", a.publishEventForge,
		forge.WithSummary("Publish event"),
		forge.WithDescription("Validates an event payload and fans out deliveries to matching subscriptions and installations."),
		forge.WithOperationID("publishEvent"),
		forge.WithRequestSchema(PublishEventForgeRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register publishEvent route", forge.Error(err))
	}

	if err := g.GET("/event-types", a.listEventTypesForge,
		forge.WithSummary("List event types"),
		forge.WithDescription("Returns the catalog of known event types with their wire names and required scopes."),
		forge.WithOperationID("listEventTypes"),
		forge.WithListResponse(EventTypeForgeResponse{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listEventTypes route", forge.Error(err))
	}
}

func (a *ForgeAPI) publishEventForge(ctx forge.Context, req *PublishEventForgeRequest) (*event.Event, error) {
	if req.Type == "" {
		return nil, forge.BadRequest("type is required")
	}
	if req.TenantID == "" {
		return nil, forge.BadRequest("tenant_id is required")
	}

	evt := &event.Event{
		Type:       event.Type(req.Type),
		TenantID:   req.TenantID,
		TenantSlug: req.TenantSlug,
		Data:       req.Data,
	}

	if err := a.hub.Publish(ctx.Context(), evt); err != nil {
		return nil, mapError(err)
	}

	err := ctx.NoContent(http.StatusAccepted)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) listEventTypesForge(ctx forge.Context, _ *ListEventTypesForgeRequest) ([]EventTypeForgeResponse, error) {
	types := event.All()
	result := make([]EventTypeForgeResponse, 0, len(types))
	for _, t := range types {
		resp := EventTypeForgeResponse{
			Name:      string(t),
			WireName:  t.Dotted(),
			Lifecycle: t.IsLifecycle(),
		}
		if scope, ok := capability.RequiredScope(t); ok && scope != capability.ScopeNone {
			resp.RequiredScope = string(scope)
		}
		result = append(result, resp)
	}

	return result, nil
}

// ---------------------------------------------------------------------------
// Delivery routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerDeliveryRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("deliveries"))

	if err := g.GET("/subscriptions/:subscriptionId/deliveries", a.listSubscriptionDeliveriesForge,
		forge.WithSummary("List subscription deliveries"),
		forge.WithDescription("Returns delivery records for a specific subscription."),
		forge.WithOperationID("listSubscriptionDeliveries"),
		forge.WithRequestSchema(ListSubscriptionDeliveriesForgeRequest{}),
		forge.WithListResponse(delivery.Record{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listSubscriptionDeliveries route", forge.Error(err))
	}

	if err := g.GET("/deliveries", a.listDeliveriesForge,
		forge.WithSummary("List deliveries"),
		forge.WithDescription("Returns delivery records for a tenant, optionally filtered by status."),
		forge.WithOperationID("listDeliveries"),
		forge.WithRequestSchema(ListDeliveriesForgeRequest{}),
		forge.WithListResponse(delivery.Record{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listDeliveries route", forge.Error(err))
	}

	if err := g.GET("/deliveries/:deliveryId", a.getDeliveryForge,
		forge.WithSummary("Get delivery"),
		forge.WithDescription("Returns details of a specific delivery record."),
		forge.WithOperationID("getDelivery"),
		forge.WithResponseSchema(http.StatusOK, "Delivery record", delivery.Record{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getDelivery route", forge.Error(err))
	}

	if err := g.GET("/deliveries/by-event/:eventId", a.getDeliveryByEventForge,
		forge.WithSummary("Get delivery by event"),
		forge.WithDescription("Returns the delivery record created for a specific event."),
		forge.WithOperationID("getDeliveryByEvent"),
		forge.WithResponseSchema(http.StatusOK, "Delivery record", delivery.Record{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getDeliveryByEvent route", forge.Error(err))
	}

	if err := g.POST("/deliveries/:deliveryId/retry", a.retryDeliveryForge,
		forge.WithSummary("Retry delivery"),
		forge.WithDescription("Re-enqueues a failed or exhausted delivery for immediate retry."),
		forge.WithOperationID("retryDelivery"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register retryDelivery route", forge.Error(err))
	}
}

func (a *ForgeAPI) listSubscriptionDeliveriesForge(ctx forge.Context, req *ListSubscriptionDeliveriesForgeRequest) ([]*delivery.Record, error) {
	subID, err := id.ParseSubscriptionID(req.SubscriptionID)
	if err != nil {
		return nil, forge.BadRequest("invalid subscription ID")
	}

	records, listErr := a.hub.Store().ListDeliveriesBySubscription(ctx.Context(), subID, forgeDeliveryListOpts(req.Status, req.Offset, req.Limit))
	if listErr != nil {
		return nil, mapError(listErr)
	}

	return records, nil
}

func (a *ForgeAPI) listDeliveriesForge(ctx forge.Context, req *ListDeliveriesForgeRequest) ([]*delivery.Record, error) {
	if req.TenantID == "" {
		return nil, forge.BadRequest("tenant_id is required")
	}

	records, err := a.hub.Store().ListDeliveriesByTenant(ctx.Context(), req.TenantID, forgeDeliveryListOpts(req.Status, req.Offset, req.Limit))
	if err != nil {
		return nil, mapError(err)
	}

	return records, nil
}

func (a *ForgeAPI) getDeliveryForge(ctx forge.Context, req *GetDeliveryForgeRequest) (*delivery.Record, error) {
	recID, err := id.ParseDeliveryID(req.DeliveryID)
	if err != nil {
		return nil, forge.BadRequest("invalid delivery ID")
	}

	rec, getErr := a.hub.Store().GetDelivery(ctx.Context(), recID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return rec, nil
}

func (a *ForgeAPI) getDeliveryByEventForge(ctx forge.Context, req *GetDeliveryByEventForgeRequest) (*delivery.Record, error) {
	evtID, err := id.ParseEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid event ID")
	}

	rec, getErr := a.hub.Store().GetDeliveryByEventID(ctx.Context(), evtID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return rec, nil
}

func (a *ForgeAPI) retryDeliveryForge(ctx forge.Context, req *RetryDeliveryForgeRequest) (*delivery.Record, error) {
	recID, err := id.ParseDeliveryID(req.DeliveryID)
	if err != nil {
		return nil, forge.BadRequest("invalid delivery ID")
	}

	if retryErr := a.hub.RetryDelivery(ctx.Context(), recID); retryErr != nil {
		return nil, mapError(retryErr)
	}

	err = ctx.NoContent(http.StatusAccepted)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func forgeDeliveryListOpts(status string, offset, limit int) delivery.ListOpts {
	if limit == 0 {
		limit = 50
	}

	opts := delivery.ListOpts{
		Offset: offset,
		Limit:  limit,
	}
	if status != "" {
		st := delivery.Status(status)
		opts.Status = &st
	}

	return opts
}

// ---------------------------------------------------------------------------
// Stats routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerStatsRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("stats"))

	if err := g.GET("/stats", a.getStatsForge,
		forge.WithSummary("Delivery statistics"),
		forge.WithDescription("Returns per-status delivery counts, optionally scoped to a tenant."),
		forge.WithOperationID("getStats"),
		forge.WithRequestSchema(StatsForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Delivery statistics", StatsForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getStats route", forge.Error(err))
	}
}

func (a *ForgeAPI) getStatsForge(ctx forge.Context, req *StatsForgeRequest) (*StatsForgeResponse, error) {
	counts, err := a.hub.Stats(ctx.Context(), req.TenantID)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &StatsForgeResponse{Counts: make(map[string]int, len(counts))}
	for status, n := range counts {
		resp.Counts[string(status)] = n
	}

	return resp, nil
}
