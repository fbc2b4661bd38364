package enums

// ActivityType classifies rows in the user activity feed.
type ActivityType string

const (
	ActivityPurchase        ActivityType = "purchase"
	ActivityOrderPlaced     ActivityType = "order_placed"
	ActivityOrderCancelled  ActivityType = "order_cancelled"
	ActivityCollectibleMade ActivityType = "collectible_created"
)

func (a ActivityType) String() string {
	return string(a)
}
