package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	want := PurchaseCursor{Date: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ID: 42}

	got, err := DecodeCursor(EncodeCursor(want))
	require.NoError(t, err)
	assert.True(t, want.Date.Equal(got.Date))
	assert.Equal(t, want.ID, got.ID)
}

func TestDecodeEmptyCursorStartsAfterEverything(t *testing.T) {
	got, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, got.Date.After(time.Now()))
	assert.Equal(t, int64(1<<63-1), got.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%not-base64")
	assert.Error(t, err)
}

func TestNewOffsetPage(t *testing.T) {
	page := newOffsetPage([]int{1, 2}, 41, 3, 20)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(41), page.Total)

	page = newOffsetPage[int](nil, 40, 1, 20)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 2, page.TotalPages)
}

func TestUniqueSorted(t *testing.T) {
	assert.Equal(t, []int64{1, 3, 7}, uniqueSorted([]int64{7, 3, 7, 1, 3}))
	assert.Empty(t, uniqueSorted(nil))
}

func TestPaging(t *testing.T) {
	tests := []struct {
		name             string
		page, size       int
		wantPage, wantSz int
	}{
		{name: "defaults", page: 0, size: 0, wantPage: 1, wantSz: DefaultPageSize},
		{name: "kept", page: 3, size: 50, wantPage: 3, wantSz: 50},
		{name: "clamped", page: -2, size: 500, wantPage: 1, wantSz: MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size := Paging(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSz, size)
		})
	}
}
