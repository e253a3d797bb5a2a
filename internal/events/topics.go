package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicProductCreated       = "product.created"
	TopicProductUpdated       = "product.updated"
	TopicProductDeleted       = "product.deleted"
	TopicPaymentConfirmed     = "payment.confirmed"
	TopicPaymentConfirmFailed = "payment.confirm_failed"
)

// DefaultTopics returns the canonical list of topics forwarded to background tasks.
func DefaultTopics() []string {
	return []string{
		TopicProductCreated,
		TopicProductUpdated,
		TopicProductDeleted,
		TopicPaymentConfirmed,
		TopicPaymentConfirmFailed,
	}
}
