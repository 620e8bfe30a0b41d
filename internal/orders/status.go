package orders

type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPreparing      Status = "PREPARING"
	StatusReady          Status = "READY"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

var known = map[Status]bool{
	StatusPending: true, StatusConfirmed: true, StatusPreparing: true, StatusReady: true,
	StatusOutForDelivery: true, StatusDelivered: true, StatusCancelled: true,
}

func (s Status) Valid() bool { return known[s] }

func (s Status) Terminal() bool { return s == StatusDelivered || s == StatusCancelled }

// CanTransition allows any move out of a non-terminal state; intermediate
// states are not forced forward-only.
func CanTransition(from, to Status) bool {
	return from.Valid() && to.Valid() && !from.Terminal()
}
