package enums

// ReservationStatus tracks a stock hold. ACTIVE is the only non-terminal
// state; consumed and released rows are never transitioned again.
type ReservationStatus string

const (
	ReservationStatusActive   ReservationStatus = "active"
	ReservationStatusConsumed ReservationStatus = "consumed"
	ReservationStatusReleased ReservationStatus = "released"
)

// Terminal reports whether the reservation reached an end state.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusConsumed || s == ReservationStatusReleased
}
