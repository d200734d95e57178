package models

import "fmt"

//go:generate go tool stringer -type=DeliveryStatus -trimprefix=DeliveryStatus -output=delivery_status_string.go

// DeliveryStatus travels as its integer ordinal. The ordering is a wire contract and must not
// be reshuffled.
type DeliveryStatus int

const (
	DeliveryStatusProcessing DeliveryStatus = iota
	DeliveryStatusInDelivery
	DeliveryStatusDelivered
	DeliveryStatusCancelled
	DeliveryStatusRefundRequested
	DeliveryStatusRefunded
)

func (s DeliveryStatus) Valid() bool {
	return s >= DeliveryStatusProcessing && s <= DeliveryStatusRefunded
}

// CountsAsRevenue reports whether a line in this status contributes to revenue.
func (s DeliveryStatus) CountsAsRevenue() bool {
	return s != DeliveryStatusCancelled && s != DeliveryStatusRefunded
}

func ParseDeliveryStatus(ordinal int) (DeliveryStatus, error) {
	s := DeliveryStatus(ordinal)
	if !s.Valid() {
		return 0, fmt.Errorf("unknown delivery status %d", ordinal)
	}
	return s, nil
}
