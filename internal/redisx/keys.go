package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{idempotency_key} -> response JSON
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cache order view: order:{order_id} -> hash {v: version, body: order JSON}
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Pub/sub channel carrying realtime messages between API instances.
	ChannelRealtime = "realtime:events"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
