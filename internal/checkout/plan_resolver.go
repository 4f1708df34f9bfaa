package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/cache"
	"github.com/mirrorchyan/storefront/internal/logger"
	"github.com/mirrorchyan/storefront/internal/metrics"

	"golang.org/x/sync/singleflight"
)

const defaultPlanCacheTTL = 10 * time.Minute

// PlanSource 套餐数据来源
type PlanSource interface {
	GetPlan(ctx context.Context, planID string) (*billing.Plan, error)
}

// PlanResolver 套餐解析：缓存 + 并发合并
type PlanResolver struct {
	source PlanSource
	store  cache.Store
	ttl    time.Duration
	group  singleflight.Group
}

// NewPlanResolver 创建套餐解析器
func NewPlanResolver(source PlanSource, store cache.Store, ttl time.Duration) *PlanResolver {
	if ttl <= 0 {
		ttl = defaultPlanCacheTTL
	}
	return &PlanResolver{source: source, store: store, ttl: ttl}
}

// Resolve 按 ID 解析套餐，任何失败都返回 (nil, false)
func (r *PlanResolver) Resolve(ctx context.Context, planID string) (*billing.Plan, bool) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, false
	}
	key := planCacheKey(planID)
	if r.store != nil {
		var cached billing.Plan
		hit, err := r.store.GetJSON(ctx, key, &cached)
		if err != nil {
			logger.Warnw("plan_cache_read_failed", "plan_id", planID, "error", err)
		}
		if hit {
			metrics.ObservePlanCache("hit")
			return &cached, true
		}
	}
	metrics.ObservePlanCache("miss")

	// 首个调用方取消不应影响合并进来的其他调用方
	fetchCtx := context.WithoutCancel(ctx)
	value, err, _ := r.group.Do(planID, func() (interface{}, error) {
		plan, err := r.source.GetPlan(fetchCtx, planID)
		if err != nil {
			return nil, err
		}
		if r.store != nil {
			if err := r.store.SetJSON(fetchCtx, key, plan, r.ttl); err != nil {
				logger.Warnw("plan_cache_write_failed", "plan_id", planID, "error", err)
			}
		}
		return plan, nil
	})
	if err != nil {
		metrics.ObservePlanCache("error")
		logger.Warnw("plan_resolve_failed", "plan_id", planID, "error", err)
		return nil, false
	}
	plan, ok := value.(*billing.Plan)
	if !ok || plan == nil {
		return nil, false
	}
	// 合并调用共享同一指针，返回副本避免调用方互相影响
	copied := *plan
	return &copied, true
}

// Invalidate 删除缓存
func (r *PlanResolver) Invalidate(ctx context.Context, planID string) error {
	if r.store == nil {
		return nil
	}
	return r.store.Del(ctx, planCacheKey(strings.TrimSpace(planID)))
}

func planCacheKey(planID string) string {
	return "plan:" + planID
}
