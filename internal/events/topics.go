package events

// Topics emitted by the pricing service.
const (
	// TopicCartRepriced fires after a breakdown has been computed and published.
	TopicCartRepriced = "cart.repriced"
	// TopicCartUnpriceable fires when a cart cannot be priced at all.
	TopicCartUnpriceable = "cart.unpriceable"
)
