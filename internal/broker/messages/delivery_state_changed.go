package messages

import "time"

// DeliveryStateChanged is published whenever a tracking update derives a
// delivery state for a shipment.
type DeliveryStateChanged struct {
	AccountID    string     `json:"account_id"`
	Protocol     string     `json:"protocol"`
	TrackingCode string     `json:"tracking_code"`
	State        string     `json:"state"`
	StatusCode   string     `json:"status_code,omitempty"`
	Description  string     `json:"description,omitempty"`
	EventTime    *time.Time `json:"event_time,omitempty"`
	ObservedAt   time.Time  `json:"observed_at"`
}
