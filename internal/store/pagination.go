package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Paging clamps page and page size to usable values for an offset query.
func Paging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// CursorPage is one keyset page. NextCursor is empty on the last page.
type CursorPage[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// OffsetPage is one numbered page plus the totals needed to render a pager.
type OffsetPage[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// PurchaseCursor points at the last purchase of a page; pages walk (date, id) descending.
type PurchaseCursor struct {
	Date time.Time `json:"date"`
	ID   int64     `json:"id"`
}

// startCursor sorts after every stored purchase.
func startCursor() PurchaseCursor {
	return PurchaseCursor{Date: time.Now().Add(24 * time.Hour), ID: math.MaxInt64}
}

func EncodeCursor(cursor PurchaseCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor parses a cursor produced by EncodeCursor. The empty string is the first page.
func DecodeCursor(encoded string) (PurchaseCursor, error) {
	if encoded == "" {
		return startCursor(), nil
	}

	var cursor PurchaseCursor
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, ErrInvalidCursor
	}
	if err := json.Unmarshal(data, &cursor); err != nil || cursor.ID <= 0 {
		return cursor, ErrInvalidCursor
	}
	return cursor, nil
}

// trimPage cuts a limit+1 result down to limit rows and builds the cursor for the next one.
func trimPage[T any](rows []T, limit int, cursorOf func(T) PurchaseCursor) *CursorPage[T] {
	page := &CursorPage[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.HasMore = true
		page.NextCursor = EncodeCursor(cursorOf(page.Items[len(page.Items)-1]))
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}

func newOffsetPage[T any](items []T, total int64, page, pageSize int) *OffsetPage[T] {
	if items == nil {
		items = []T{}
	}
	return &OffsetPage[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}
