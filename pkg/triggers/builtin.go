package triggers

// Builtin returns every trigger shipped with the engine.
func Builtin(env Env) []Trigger {
	return []Trigger{
		NewOrderCreated(env),
		NewOrderStatusChanges(env),
		NewOrderPaid(env),
		NewOrderItemPurchased(env),
		NewCustomerAccountCreated(env),
		NewCartAbandoned(env),
		NewSubscriptionStatusChanged(env),
		NewSubscriptionBeforeRenewal(env),
		NewCardExpiresSoon(env),
		NewManualOrder(env),
		NewManualSubscription(env),
	}
}
