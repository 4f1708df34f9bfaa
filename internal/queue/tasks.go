package queue

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mirrorchyan/storefront/internal/constants"

	"github.com/hibiken/asynq"
)

// TaskCheckoutExpire 台账超时任务
const TaskCheckoutExpire = constants.TaskCheckoutExpire

// CheckoutExpirePayload 台账超时任务载荷
type CheckoutExpirePayload struct {
	CorrelationID string `json:"custom_order_id"`
}

// NewCheckoutExpireTask 创建台账超时任务
func NewCheckoutExpireTask(payload CheckoutExpirePayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.CorrelationID) == "" {
		return nil, errors.New("custom_order_id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCheckoutExpire, body), nil
}

// ParseCheckoutExpirePayload 解析任务载荷
func ParseCheckoutExpirePayload(task *asynq.Task) (CheckoutExpirePayload, error) {
	var payload CheckoutExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
