package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus(" Completed ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCompleted, status)

	for _, raw := range []string{"", "accepted", "rejected", "done"} {
		_, err := ParseOrderStatus(raw)
		assert.Error(t, err, raw)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusCompleted, false},
		{OrderStatusCompleted, OrderStatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.False(t, OrderStatusPending.IsTerminal())
}

func TestOrderStatusesIsACopy(t *testing.T) {
	statuses := OrderStatuses()
	statuses[0] = "mutated"
	assert.Equal(t, OrderStatusPending, OrderStatuses()[0])
}

func TestItemsEncoding(t *testing.T) {
	raw, err := EncodeItems(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	items := []OrderItem{{Name: "Sofa Cleaning", Category: "furniture", Price: 500}, {Name: "Mattress", Price: 349.5}}
	raw, err = EncodeItems(items)
	require.NoError(t, err)
	decoded, err := DecodeItems(raw)
	require.NoError(t, err)
	assert.Equal(t, items, decoded)

	empty, err := DecodeItems("  ")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	null, err := DecodeItems("null")
	require.NoError(t, err)
	assert.NotNil(t, null)

	_, err = DecodeItems("{broken")
	require.Error(t, err)
}

func TestMetaEncoding(t *testing.T) {
	none, err := EncodeMeta(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	raw, err := EncodeMeta(map[string]any{"orderId": 12})
	require.NoError(t, err)
	require.NotNil(t, raw)

	meta, err := DecodeMeta(*raw)
	require.NoError(t, err)
	assert.EqualValues(t, 12, meta["orderId"])

	blank, err := DecodeMeta("")
	require.NoError(t, err)
	assert.Nil(t, blank)
}

func TestUserHasPassword(t *testing.T) {
	assert.False(t, User{}.HasPassword())
	assert.True(t, User{PasswordHash: "x"}.HasPassword())
}
