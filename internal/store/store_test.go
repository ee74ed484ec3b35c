package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreSaveGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if rec, _ := s.Get(ctx, "missing"); rec != nil {
		t.Fatal("expected nil for missing key")
	}

	p := Purchase{
		RequestID:   "key-1",
		ServiceType: "airtime",
		ServiceID:   "mtn",
		LocalAmount: 1000,
		UserAddress: "0xAbC",
		State:       "orderBroadcast",
	}
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	p.State = "success"
	p.TxHash = "0x1"
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.Get(ctx, "key-1")
	if got == nil || got.State != "success" || got.TxHash != "0x1" {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created at should be set")
	}
}

func TestMemoryStorePagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_ = s.Save(ctx, Purchase{
			RequestID:   fmt.Sprintf("key-%d", i),
			UserAddress: "0xabc",
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Second),
		})
	}
	_ = s.Save(ctx, Purchase{RequestID: "other", UserAddress: "0xdef"})

	page1, total, err := s.ListByAddress(ctx, "0xABC", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 25 || len(page1) != 10 {
		t.Fatalf("total=%d len=%d", total, len(page1))
	}
	if page1[0].RequestID != "key-24" {
		t.Fatalf("expected newest first, got %s", page1[0].RequestID)
	}

	page3, _, _ := s.ListByAddress(ctx, "0xabc", 3, 10)
	if len(page3) != 5 {
		t.Fatalf("expected 5 on last page, got %d", len(page3))
	}

	empty, total, _ := s.ListByAddress(ctx, "0xabc", 4, 10)
	if len(empty) != 0 || total != 25 {
		t.Fatalf("past the end: len=%d total=%d", len(empty), total)
	}
}
