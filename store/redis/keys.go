package redis

// Key prefixes for primary entity storage.
const (
	prefixSubscription = "hooks:sub:"
	prefixInstallation = "hooks:inst:"
	prefixDelivery     = "hooks:del:"
)

// Key prefixes for unique indexes.
const (
	uniqueSubscription  = "hooks:u:sub:"     // + tenantID + ":" + eventType + ":" + url
	uniqueDeliveryEvent = "hooks:u:del:evt:" // + eventID
)

// Key prefixes for sorted set indexes.
const (
	zSubscriptionTenant = "hooks:z:sub:tenant:"  // + tenant ID
	zInstallationTenant = "hooks:z:inst:tenant:" // + tenant ID
	zDeliverySub        = "hooks:z:del:sub:"     // + subscription ID
	zDeliveryTenant     = "hooks:z:del:tenant:"  // + tenant ID
	zDeliveryAll        = "hooks:z:del:all"
	zDeliveryDue        = "hooks:z:del:due"
)

// Key prefixes for set indexes.
const (
	sSubscriptionEligible = "hooks:s:sub:tenant:"  // + tenantID + ":eligible"
	sInstallationActive   = "hooks:s:inst:tenant:" // + tenantID + ":active"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// subscriptionUniqueKey identifies the (tenant, event type, url) tuple that
// may have at most one subscription.
func subscriptionUniqueKey(tenantID, eventType, url string) string {
	return uniqueSubscription + tenantID + ":" + eventType + ":" + url
}

// eligibleSetKey returns the set key for eligible subscriptions of a tenant.
func eligibleSetKey(tenantID string) string {
	return sSubscriptionEligible + tenantID + ":eligible"
}

// activeSetKey returns the set key for active installations of a tenant.
func activeSetKey(tenantID string) string {
	return sInstallationActive + tenantID + ":active"
}
