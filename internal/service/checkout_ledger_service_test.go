package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/checkout"
	"github.com/mirrorchyan/storefront/internal/constants"
	"github.com/mirrorchyan/storefront/internal/models"
	"github.com/mirrorchyan/storefront/internal/queue"
	"github.com/mirrorchyan/storefront/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupLedgerServiceTest(t *testing.T) (*CheckoutLedgerService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.CheckoutOrder{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	svc := NewCheckoutLedgerService(repository.NewCheckoutOrderRepository(db), queueClient)
	return svc, db
}

func ledgerEntry(correlationID string, expiresAt time.Time) checkout.LedgerEntry {
	return checkout.LedgerEntry{
		SessionID:     "sess-1",
		CorrelationID: correlationID,
		PlanID:        "plan-1",
		Method:        "alipay",
		Platform:      "alipay",
		Open:          "qrcode",
		Locale:        "zh",
		Source:        "web",
		RenewKey:      "  RENEWKEY  ",
		Amount:        decimal.RequireFromString("8.00"),
		ExpiresAt:     expiresAt,
	}
}

func loadLedgerOrder(t *testing.T, db *gorm.DB, correlationID string) models.CheckoutOrder {
	t.Helper()
	var order models.CheckoutOrder
	if err := db.Where("correlation_id = ?", correlationID).First(&order).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	return order
}

func TestLedgerRecordCreatedStoresFingerprintOnly(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)
	ctx := context.Background()
	if err := svc.RecordCreated(ctx, ledgerEntry("corr-1", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("record created failed: %v", err)
	}
	order := loadLedgerOrder(t, db, "corr-1")
	if order.Status != constants.CheckoutOrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if order.RenewKeyFingerprint != checkout.Fingerprint("RENEWKEY") {
		t.Fatalf("unexpected renew fingerprint %q", order.RenewKeyFingerprint)
	}
	if order.Amount.StringFixed(2) != "8.00" {
		t.Fatalf("unexpected amount %s", order.Amount.String())
	}
	if order.ExpiresAt == nil {
		t.Fatalf("expected expires_at to be recorded")
	}

	err := svc.RecordCreated(ctx, ledgerEntry("corr-1", time.Now().Add(time.Hour)))
	if !errors.Is(err, checkout.ErrCorrelationReused) {
		t.Fatalf("expected ErrCorrelationReused, got %v", err)
	}
}

func TestLedgerRecordFulfilledAndOutcome(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)
	ctx := context.Background()
	_ = svc.RecordCreated(ctx, ledgerEntry("corr-ok", time.Now().Add(time.Hour)))
	_ = svc.RecordCreated(ctx, ledgerEntry("corr-closed", time.Now().Add(time.Hour)))

	status := &billing.OrderStatus{Code: 0, CDK: "CDK-123", ExpiredAt: "2030-01-01T00:00:00Z"}
	if err := svc.RecordFulfilled(ctx, "corr-ok", status); err != nil {
		t.Fatalf("record fulfilled failed: %v", err)
	}
	order := loadLedgerOrder(t, db, "corr-ok")
	if order.Status != constants.CheckoutOrderStatusFulfilled || order.CDKFingerprint != checkout.Fingerprint("CDK-123") {
		t.Fatalf("unexpected fulfilled order: %+v", order)
	}
	if order.FulfilledAt == nil {
		t.Fatalf("expected fulfilled_at")
	}

	// 已发货的记录不会被关闭覆盖
	if err := svc.RecordOutcome(ctx, "corr-ok", constants.CheckoutOrderStatusClosed); err != nil {
		t.Fatalf("record outcome failed: %v", err)
	}
	if got := loadLedgerOrder(t, db, "corr-ok").Status; got != constants.CheckoutOrderStatusFulfilled {
		t.Fatalf("fulfilled order overwritten to %s", got)
	}

	if err := svc.RecordOutcome(ctx, "corr-closed", constants.CheckoutOrderStatusClosed); err != nil {
		t.Fatalf("record outcome failed: %v", err)
	}
	if got := loadLedgerOrder(t, db, "corr-closed").Status; got != constants.CheckoutOrderStatusClosed {
		t.Fatalf("expected closed, got %s", got)
	}

	if err := svc.RecordOutcome(ctx, "corr-closed", constants.CheckoutOrderStatusFulfilled); err == nil {
		t.Fatalf("expected unsupported outcome error")
	}
}

func TestLedgerExpireOrderAndSweep(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)
	ctx := context.Background()
	now := time.Now()
	_ = svc.RecordCreated(ctx, ledgerEntry("corr-task", now.Add(time.Hour)))
	_ = svc.RecordCreated(ctx, ledgerEntry("corr-overdue-1", now.Add(-time.Minute)))
	_ = svc.RecordCreated(ctx, ledgerEntry("corr-overdue-2", now.Add(-2*time.Minute)))
	_ = svc.RecordCreated(ctx, ledgerEntry("corr-live", now.Add(time.Hour)))

	ok, err := svc.ExpireOrder(ctx, "corr-task")
	if err != nil || !ok {
		t.Fatalf("expire order failed: ok=%v err=%v", ok, err)
	}
	ok, err = svc.ExpireOrder(ctx, "corr-task")
	if err != nil || ok {
		t.Fatalf("second expire should be a no-op: ok=%v err=%v", ok, err)
	}

	expired, err := svc.ExpireOverdue(ctx, 0)
	if err != nil {
		t.Fatalf("expire overdue failed: %v", err)
	}
	if expired != 2 {
		t.Fatalf("expected 2 overdue orders, got %d", expired)
	}
	if got := loadLedgerOrder(t, db, "corr-live").Status; got != constants.CheckoutOrderStatusPending {
		t.Fatalf("live order should stay pending, got %s", got)
	}
	if got := loadLedgerOrder(t, db, "corr-overdue-1").Status; got != constants.CheckoutOrderStatusTimedOut {
		t.Fatalf("overdue order should time out, got %s", got)
	}
}
