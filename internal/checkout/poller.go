package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/logger"
	"github.com/mirrorchyan/storefront/internal/metrics"

	"k8s.io/utils/clock"
)

// PollState 轮询状态
type PollState string

const (
	PollIdle      PollState = "idle"
	PollPolling   PollState = "polling"
	PollFulfilled PollState = "fulfilled"
	PollTimedOut  PollState = "timed_out"
)

const (
	defaultPollInitialDelay = 1200 * time.Millisecond
	defaultPollInterval     = 1500 * time.Millisecond
	defaultPollMaxWait      = 40 * time.Minute
	defaultPollQueryTimeout = 10 * time.Second
)

// OrderQuerier 查单接口
type OrderQuerier interface {
	QueryOrder(ctx context.Context, customOrderID string) (*billing.OrderStatus, error)
}

// PollerOptions 轮询参数
type PollerOptions struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxWait      time.Duration
	QueryTimeout time.Duration
	Clock        clock.WithDelayedExecution
}

// PollerCallbacks 轮询事件回调，均在锁外调用
type PollerCallbacks struct {
	OnFulfilled func(correlationID string, status *billing.OrderStatus)
	OnTimeout   func(correlationID string)
	OnWarning   func(correlationID string, err error)
}

// Poller 订单轮询器
// 每次 Start 递增 generation，旧轮次的定时器与在途查询结果一律丢弃。
// 查询完成后才重新挂定时器，因此同一时刻最多一个在途查询。
type Poller struct {
	querier OrderQuerier
	opts    PollerOptions
	cb      PollerCallbacks

	mu            sync.Mutex
	state         PollState
	generation    uint64
	correlationID string
	pollTimer     clock.Timer
	watchdog      clock.Timer
	cancelQuery   context.CancelFunc
	warned        bool
	queries       int
	result        *billing.OrderStatus
	deadline      time.Time
}

// NewPoller 创建轮询器
func NewPoller(querier OrderQuerier, opts PollerOptions, cb PollerCallbacks) *Poller {
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultPollInitialDelay
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = defaultPollMaxWait
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultPollQueryTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Poller{querier: querier, opts: opts, cb: cb, state: PollIdle}
}

// Start 开始轮询关联单号，之前的轮询被取代
func (p *Poller) Start(correlationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.teardownLocked()
	p.generation++
	gen := p.generation
	p.correlationID = correlationID
	p.state = PollPolling
	p.warned = false
	p.queries = 0
	p.result = nil
	p.deadline = p.opts.Clock.Now().Add(p.opts.MaxWait)
	p.pollTimer = p.opts.Clock.AfterFunc(p.opts.InitialDelay, func() { p.tick(gen) })
	p.watchdog = p.opts.Clock.AfterFunc(p.opts.MaxWait, func() { p.expire(gen) })
}

// Stop 停止轮询（关闭弹窗、切换支付方式等），已发货结果保留
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked()
	p.generation++
	if p.state == PollPolling {
		p.state = PollIdle
	}
}

// Reset 回到初始状态
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked()
	p.generation++
	p.state = PollIdle
	p.correlationID = ""
	p.result = nil
	p.queries = 0
	p.warned = false
	p.deadline = time.Time{}
}

// State 当前状态
func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Queries 本轮已完成的查询次数
func (p *Poller) Queries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}

// Result 已发货结果
func (p *Poller) Result() *billing.OrderStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Deadline 本轮超时时间
func (p *Poller) Deadline() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deadline
}

func (p *Poller) tick(gen uint64) {
	p.mu.Lock()
	if gen != p.generation || p.state != PollPolling {
		p.mu.Unlock()
		return
	}
	correlationID := p.correlationID
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.QueryTimeout)
	p.cancelQuery = cancel
	p.mu.Unlock()

	status, err := p.querier.QueryOrder(ctx, correlationID)
	cancel()

	p.mu.Lock()
	if gen != p.generation || p.state != PollPolling {
		p.mu.Unlock()
		return
	}
	p.cancelQuery = nil
	p.queries++

	if err == nil && status.Fulfilled() {
		p.state = PollFulfilled
		p.result = status
		p.stopTimersLocked()
		p.mu.Unlock()
		metrics.ObserveOrderPoll("fulfilled")
		if p.cb.OnFulfilled != nil {
			p.cb.OnFulfilled(correlationID, status)
		}
		return
	}

	warn := false
	if err != nil {
		warn = !p.warned
		p.warned = true
	}
	p.pollTimer = p.opts.Clock.AfterFunc(p.opts.Interval, func() { p.tick(gen) })
	p.mu.Unlock()

	if err == nil {
		metrics.ObserveOrderPoll("pending")
		return
	}
	metrics.ObserveOrderPoll("error")
	logger.Debugw("checkout_poll_query_failed", "custom_order_id", correlationID, "error", err)
	if warn && p.cb.OnWarning != nil {
		p.cb.OnWarning(correlationID, err)
	}
}

func (p *Poller) expire(gen uint64) {
	p.mu.Lock()
	if gen != p.generation || p.state != PollPolling {
		p.mu.Unlock()
		return
	}
	correlationID := p.correlationID
	p.teardownLocked()
	p.state = PollTimedOut
	p.mu.Unlock()

	if p.cb.OnTimeout != nil {
		p.cb.OnTimeout(correlationID)
	}
}

func (p *Poller) teardownLocked() {
	p.stopTimersLocked()
	if p.cancelQuery != nil {
		p.cancelQuery()
		p.cancelQuery = nil
	}
}

func (p *Poller) stopTimersLocked() {
	if p.pollTimer != nil {
		p.pollTimer.Stop()
		p.pollTimer = nil
	}
	if p.watchdog != nil {
		p.watchdog.Stop()
		p.watchdog = nil
	}
}
