package model

// ShirtStock is the inventory row for one shirt variant.
// ReservedUnits is always derived from live registration rows by the store's
// recompute; AvailableUnits is never stored.
type ShirtStock struct {
	Size          string `json:"size"`
	Sleeve        string `json:"sleeve"`
	TotalUnits    int    `json:"total_units"`
	ReservedUnits int    `json:"reserved_units"`
}

// Available returns the number of units still open for reservation.
func (s ShirtStock) Available() int {
	return s.TotalUnits - s.ReservedUnits
}
