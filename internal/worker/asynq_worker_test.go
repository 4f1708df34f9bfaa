package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mirrorchyan/storefront/internal/constants"
	"github.com/mirrorchyan/storefront/internal/models"
	"github.com/mirrorchyan/storefront/internal/provider"
	"github.com/mirrorchyan/storefront/internal/queue"
	"github.com/mirrorchyan/storefront/internal/repository"
	"github.com/mirrorchyan/storefront/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupConsumerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_consumer_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.CheckoutOrder{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	repo := repository.NewCheckoutOrderRepository(db)
	container := &provider.Container{
		CheckoutOrderRepo: repo,
		LedgerService:     service.NewCheckoutLedgerService(repo, nil),
	}
	return NewConsumer(container), db
}

func createPendingOrder(t *testing.T, db *gorm.DB, correlationID, status string) {
	t.Helper()
	order := &models.CheckoutOrder{
		CorrelationID: correlationID,
		SessionID:     "sess",
		PlanID:        "plan",
		Method:        "alipay",
		Platform:      "alipay",
		OpenStrategy:  "qrcode",
		Status:        status,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
}

func orderStatus(t *testing.T, db *gorm.DB, correlationID string) string {
	t.Helper()
	var order models.CheckoutOrder
	if err := db.Where("correlation_id = ?", correlationID).First(&order).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	return order.Status
}

func TestHandleCheckoutExpireMarksPending(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	createPendingOrder(t, db, "corr-pending", constants.CheckoutOrderStatusPending)
	createPendingOrder(t, db, "corr-paid", constants.CheckoutOrderStatusFulfilled)

	for _, id := range []string{"corr-pending", "corr-paid"} {
		task, err := queue.NewCheckoutExpireTask(queue.CheckoutExpirePayload{CorrelationID: id})
		if err != nil {
			t.Fatalf("new task failed: %v", err)
		}
		if err := consumer.handleCheckoutExpire(context.Background(), task); err != nil {
			t.Fatalf("handle task failed: %v", err)
		}
	}
	if got := orderStatus(t, db, "corr-pending"); got != constants.CheckoutOrderStatusTimedOut {
		t.Fatalf("expected timed_out, got %s", got)
	}
	if got := orderStatus(t, db, "corr-paid"); got != constants.CheckoutOrderStatusFulfilled {
		t.Fatalf("fulfilled order must not expire, got %s", got)
	}
}

func TestHandleCheckoutExpireBadPayloadSkipsRetry(t *testing.T) {
	consumer, _ := setupConsumerTest(t)
	task := asynq.NewTask(queue.TaskCheckoutExpire, []byte("{broken"))
	err := consumer.handleCheckoutExpire(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestHandleCheckoutExpireNilSafe(t *testing.T) {
	var consumer *Consumer
	if err := consumer.handleCheckoutExpire(context.Background(), nil); err != nil {
		t.Fatalf("nil consumer should be a no-op, got %v", err)
	}
}
