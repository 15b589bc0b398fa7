package redisx

import "time"

const (
	// Cart aggregate per browser profile: cart:{cart_id} -> JSON array of items
	KeyCart = "cart:%s"

	// Cached settings value: setting:{key} -> raw value
	KeySetting = "setting:%s"

	// Signed-out tokens: auth:revoked:{jti} -> "1" until the token would expire
	KeyRevokedToken = "auth:revoked:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Dashboard counters filled by the notifier: hash stats:checkout
	KeyCheckoutStats = "stats:checkout"
)

var (
	TTLCart         = 30 * 24 * time.Hour
	TTLSettingCache = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
