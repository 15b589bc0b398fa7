package orders

const (
	TopicOrderPlaced       = "storefront.order.placed"
	TopicReservationPlaced = "storefront.reservation.placed"
	TopicStatusChanged     = "storefront.status.changed"
)

// Partition key = record id, so every event of one record keeps its order.
func PartitionKey(id string) []byte { return []byte(id) }
