package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryStatusOrdinals(t *testing.T) {
	want := map[DeliveryStatus]int{
		DeliveryStatusProcessing:      0,
		DeliveryStatusInDelivery:      1,
		DeliveryStatusDelivered:       2,
		DeliveryStatusCancelled:       3,
		DeliveryStatusRefundRequested: 4,
		DeliveryStatusRefunded:        5,
	}
	for status, ordinal := range want {
		assert.Equal(t, ordinal, int(status), status.String())
	}
}

func TestDeliveryStatusSerializesAsOrdinal(t *testing.T) {
	data, err := json.Marshal(Delivery{Status: DeliveryStatusCancelled})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(3), decoded["status"])
}

func TestDeliveryStatusString(t *testing.T) {
	assert.Equal(t, "RefundRequested", DeliveryStatusRefundRequested.String())
	assert.Equal(t, "DeliveryStatus(9)", DeliveryStatus(9).String())
}

func TestParseDeliveryStatus(t *testing.T) {
	s, err := ParseDeliveryStatus(2)
	require.NoError(t, err)
	assert.Equal(t, DeliveryStatusDelivered, s)

	_, err = ParseDeliveryStatus(6)
	assert.Error(t, err)
	_, err = ParseDeliveryStatus(-1)
	assert.Error(t, err)
}

func TestCountsAsRevenue(t *testing.T) {
	assert.True(t, DeliveryStatusProcessing.CountsAsRevenue())
	assert.True(t, DeliveryStatusRefundRequested.CountsAsRevenue())
	assert.False(t, DeliveryStatusCancelled.CountsAsRevenue())
	assert.False(t, DeliveryStatusRefunded.CountsAsRevenue())
}

func TestRoleIsStaff(t *testing.T) {
	assert.False(t, RoleCustomer.IsStaff())
	assert.True(t, RoleSalesManager.IsStaff())
	assert.True(t, RoleProductManager.IsStaff())
}

func TestCommentStatusValid(t *testing.T) {
	for _, s := range []CommentStatus{CommentStatusPending, CommentStatusApproved, CommentStatusDisapproved} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, CommentStatus("hidden").Valid())
	assert.False(t, CommentStatus("").Valid())
}
