package topics

const (
	// Preços
	PriceUpdates = "price_updates"

	// Plataforma (depósitos, saques, apostas, indicações)
	PlatformEvents = "platform_events"

	// DLQs
	PriceUpdatesDLQ = "price_updates_dlq"
)
