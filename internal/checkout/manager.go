package checkout

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/constants"
	"github.com/mirrorchyan/storefront/internal/logger"
	"github.com/mirrorchyan/storefront/internal/metrics"
	"github.com/shopspring/decimal"

	"k8s.io/utils/clock"
)

const (
	defaultSessionIdle = time.Hour
	ledgerTimeout      = 5 * time.Second
)

// LedgerEntry 台账记录
type LedgerEntry struct {
	SessionID     string
	CorrelationID string
	PlanID        string
	Method        string
	Platform      string
	Open          string
	Locale        string
	Source        string
	RenewKey      string
	Amount        decimal.Decimal
	ExpiresAt     time.Time
}

// Ledger 支付台账，记录失败不影响支付流程
type Ledger interface {
	RecordCreated(ctx context.Context, entry LedgerEntry) error
	RecordFulfilled(ctx context.Context, correlationID string, status *billing.OrderStatus) error
	RecordOutcome(ctx context.Context, correlationID, status string) error
}

// ManagerOptions 会话管理参数
type ManagerOptions struct {
	PollInitialDelay time.Duration
	PollInterval     time.Duration
	MaxWait          time.Duration
	RenewalDebounce  time.Duration
	SessionIdle      time.Duration
	PublicBaseURL    string
	DefaultSource    string
	Clock            clock.WithDelayedExecution
}

// CreateSessionInput 创建会话参数
type CreateSessionInput struct {
	PlanID     string
	Locale     string
	Source     string
	UserAgent  string
	Touch      *bool
	Method     string
	RenewalCDK string
	Price      PriceContext
}

// PayOptions 发起支付参数
type PayOptions struct {
	AcknowledgeInApp bool
	RenewalCDK       *string
}

// Manager 结算会话管理
type Manager struct {
	resolver  *PlanResolver
	initiator *Initiator
	querier   OrderQuerier
	lookup    KeyLookup
	ledger    Ledger
	opts      ManagerOptions

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager 创建会话管理器，ledger 可为空
func NewManager(resolver *PlanResolver, initiator *Initiator, querier OrderQuerier, lookup KeyLookup, ledger Ledger, opts ManagerOptions) *Manager {
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = defaultSessionIdle
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if strings.TrimSpace(opts.DefaultSource) == "" {
		opts.DefaultSource = constants.DefaultOrderSource
	}
	return &Manager{
		resolver:  resolver,
		initiator: initiator,
		querier:   querier,
		lookup:    lookup,
		ledger:    ledger,
		opts:      opts,
		sessions:  make(map[string]*Session),
	}
}

// Create 解析套餐并创建会话
func (m *Manager) Create(ctx context.Context, input CreateSessionInput) (*Session, error) {
	plan, ok := m.resolver.Resolve(ctx, input.PlanID)
	if !ok {
		return nil, ErrPlanUnavailable
	}
	now := m.opts.Clock.Now()
	price := input.Price
	if price.Now.IsZero() {
		price.Now = now
	}
	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = m.opts.DefaultSource
	}

	s := &Session{
		ID:               NewSessionID(),
		Plan:             plan,
		Locale:           input.Locale,
		Source:           source,
		Env:              DetectEnvironment(input.UserAgent).WithTouch(input.Touch),
		Price:            ComputePrice(plan, price),
		CreatedAt:        now,
		method:           DefaultMethod(plan),
		availability:     AvailabilityOf(plan),
		state:            constants.CheckoutSessionReady,
		usedCorrelations: make(map[string]struct{}),
		lastActive:       now,
	}
	if raw := strings.TrimSpace(input.Method); raw != "" {
		if method, err := ParseMethod(raw); err == nil && s.availability.Allows(method) {
			s.method = method
		}
	}
	s.poller = NewPoller(m.querier, PollerOptions{
		InitialDelay: m.opts.PollInitialDelay,
		Interval:     m.opts.PollInterval,
		MaxWait:      m.opts.MaxWait,
		Clock:        m.opts.Clock,
	}, PollerCallbacks{
		OnFulfilled: func(correlationID string, status *billing.OrderStatus) {
			m.onFulfilled(s, correlationID, status)
		},
		OnTimeout: func(correlationID string) {
			m.onTimeout(s, correlationID)
		},
		OnWarning: func(correlationID string, err error) {
			m.onWarning(s, correlationID, err)
		},
	})
	s.renewal = NewRenewalValidator(m.lookup, RenewalOptions{
		Debounce: m.opts.RenewalDebounce,
		Clock:    m.opts.Clock,
	})
	if input.RenewalCDK != "" {
		s.renewal.Observe(input.RenewalCDK)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()
	metrics.SetActiveSessions(count)

	logger.Debugw("checkout_session_created",
		"session_id", s.ID,
		"plan_id", plan.ID,
		"method", s.method,
		"mobile", s.Env.Mobile,
		"in_app", s.Env.InApp,
	)
	return s, nil
}

// Get 获取会话并刷新活跃时间
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.opts.Clock.Now())
	return s, nil
}

// SelectMethod 切换支付方式
func (m *Manager) SelectMethod(id, raw string) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	method, err := ParseMethod(raw)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.availability.Allows(method) {
		return nil, ErrMethodUnavailable
	}
	s.method = method
	return s, nil
}

// ObserveRenewal 记录续费输入，防抖后自动校验
func (m *Manager) ObserveRenewal(id, cdk string) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.renewal.Observe(cdk)
	return s, nil
}

// ValidateRenewal 立即校验续费输入
func (m *Manager) ValidateRenewal(ctx context.Context, id, cdk string) (Verdict, error) {
	s, err := m.Get(id)
	if err != nil {
		return Verdict{}, err
	}
	s.renewal.Observe(cdk)
	return s.renewal.Validate(ctx, cdk), nil
}

// Pay 发起支付
// 续费校验优先于应用内浏览器检查；同一会话同时只允许一次下单。
func (m *Manager) Pay(ctx context.Context, id string, opts PayOptions) (*Payment, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if opts.RenewalCDK != nil {
		s.renewal.Observe(*opts.RenewalCDK)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if s.paying {
		s.mu.Unlock()
		return nil, ErrPaymentInProgress
	}
	s.paying = true
	method := s.method
	if opts.AcknowledgeInApp {
		s.inAppAcknowledged = true
	}
	acknowledged := s.inAppAcknowledged
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.paying = false
		s.mu.Unlock()
	}()

	renewKey := s.renewal.Input()
	verdict := s.renewal.Validate(ctx, renewKey)
	if !verdict.Valid {
		return nil, &RenewalError{Verdict: verdict}
	}

	if s.Env.HazardFor(method) && !acknowledged {
		return nil, &HazardError{Alternatives: m.alternatives(s)}
	}

	// 下单失败时原支付流程及其轮询保持不变
	payment, err := m.initiator.CreatePayment(ctx, PaymentRequest{
		Plan:       s.Plan,
		Method:     method,
		Env:        s.Env,
		RenewalCDK: renewKey,
		Source:     s.Source,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.ObserveCheckoutOutcome("closed")
		logger.Infow("checkout_payment_discarded", "session_id", s.ID, "custom_order_id", payment.CorrelationID)
		return nil, ErrSessionNotFound
	}
	if _, used := s.usedCorrelations[payment.CorrelationID]; used {
		s.mu.Unlock()
		logger.Warnw("checkout_correlation_reused", "session_id", s.ID, "custom_order_id", payment.CorrelationID)
		return nil, ErrCorrelationReused
	}
	var superseded string
	if s.payment != nil && s.state == constants.CheckoutSessionAwaitingPayment {
		superseded = s.payment.CorrelationID
	}
	s.usedCorrelations[payment.CorrelationID] = struct{}{}
	s.payment = payment
	s.state = constants.CheckoutSessionAwaitingPayment
	s.fulfilled = nil
	s.renewedWith = renewKey
	s.warningKey = ""
	s.timedOut = false
	// 持锁启动，teardown 之后不会再有轮询
	s.poller.Start(payment.CorrelationID)
	s.mu.Unlock()

	if superseded != "" {
		metrics.ObserveCheckoutOutcome("closed")
		m.recordOutcome(superseded, constants.CheckoutOrderStatusClosed)
	}
	m.recordCreated(s, payment, renewKey)

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		m.recordOutcome(payment.CorrelationID, constants.CheckoutOrderStatusClosed)
	}
	return payment, nil
}

// ActivePayment 当前等待支付的订单
func (m *Manager) ActivePayment(id string) (*Payment, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payment == nil || s.state != constants.CheckoutSessionAwaitingPayment {
		return nil, ErrNoActivePayment
	}
	return s.payment, nil
}

// ClosePayment 关闭支付弹窗，停止轮询
func (m *Manager) ClosePayment(id string) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	payment := s.payment
	if payment == nil || s.state != constants.CheckoutSessionAwaitingPayment {
		s.mu.Unlock()
		return s, nil
	}
	s.resetToReadyLocked()
	s.mu.Unlock()

	s.poller.Stop()
	metrics.ObserveCheckoutOutcome("closed")
	m.recordOutcome(payment.CorrelationID, constants.CheckoutOrderStatusClosed)
	return s, nil
}

// Close 销毁会话
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	metrics.SetActiveSessions(count)
	m.teardown(s)
	return nil
}

// Sweep 清理长时间无访问的会话，返回清理数量
func (m *Manager) Sweep() int {
	now := m.opts.Clock.Now()
	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince(now) >= m.opts.SessionIdle {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		m.teardown(s)
	}
	if len(expired) > 0 {
		metrics.SetActiveSessions(count)
		logger.Debugw("checkout_sessions_swept", "count", len(expired))
	}
	return len(expired)
}

// Shutdown 停止全部会话
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		m.teardown(s)
	}
	metrics.SetActiveSessions(0)
}

// Len 会话数量
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) teardown(s *Session) {
	s.mu.Lock()
	s.closed = true
	payment := s.payment
	awaiting := s.state == constants.CheckoutSessionAwaitingPayment
	s.mu.Unlock()

	s.poller.Reset()
	s.renewal.Close()
	if awaiting && payment != nil {
		m.recordOutcome(payment.CorrelationID, constants.CheckoutOrderStatusClosed)
	}
}

func (m *Manager) onFulfilled(s *Session, correlationID string, status *billing.OrderStatus) {
	s.mu.Lock()
	if s.payment == nil || s.payment.CorrelationID != correlationID {
		s.mu.Unlock()
		return
	}
	s.fulfilled = status
	s.state = constants.CheckoutSessionFulfilled
	s.warningKey = ""
	s.mu.Unlock()

	metrics.ObserveCheckoutOutcome("fulfilled")
	logger.Infow("checkout_order_fulfilled", "session_id", s.ID, "custom_order_id", correlationID)
	if m.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	if err := m.ledger.RecordFulfilled(ctx, correlationID, status); err != nil {
		logger.Warnw("checkout_ledger_fulfilled_failed", "custom_order_id", correlationID, "error", err)
	}
}

func (m *Manager) onTimeout(s *Session, correlationID string) {
	s.mu.Lock()
	if s.payment == nil || s.payment.CorrelationID != correlationID {
		s.mu.Unlock()
		return
	}
	s.resetToReadyLocked()
	s.timedOut = true
	s.warningKey = "checkout.timed_out"
	s.mu.Unlock()

	metrics.ObserveCheckoutOutcome("timed_out")
	logger.Infow("checkout_order_timed_out", "session_id", s.ID, "custom_order_id", correlationID)
	m.recordOutcome(correlationID, constants.CheckoutOrderStatusTimedOut)
}

func (m *Manager) onWarning(s *Session, correlationID string, err error) {
	s.mu.Lock()
	if s.payment != nil && s.payment.CorrelationID == correlationID {
		s.warningKey = "checkout.polling_warning"
	}
	s.mu.Unlock()
	logger.Warnw("checkout_poll_degraded", "session_id", s.ID, "custom_order_id", correlationID, "error", err)
}

func (m *Manager) recordCreated(s *Session, payment *Payment, renewKey string) {
	if m.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	err := m.ledger.RecordCreated(ctx, LedgerEntry{
		SessionID:     s.ID,
		CorrelationID: payment.CorrelationID,
		PlanID:        s.Plan.ID,
		Method:        string(payment.Route.Method),
		Platform:      payment.Route.Platform,
		Open:          payment.Open,
		Locale:        s.Locale,
		Source:        s.Source,
		RenewKey:      Fingerprint(renewKey),
		Amount:        payment.Amount,
		ExpiresAt:     s.poller.Deadline(),
	})
	if err != nil {
		logger.Warnw("checkout_ledger_create_failed", "custom_order_id", payment.CorrelationID, "error", err)
	}
}

func (m *Manager) recordOutcome(correlationID, status string) {
	if m.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	if err := m.ledger.RecordOutcome(ctx, correlationID, status); err != nil {
		logger.Warnw("checkout_ledger_outcome_failed", "custom_order_id", correlationID, "status", status, "error", err)
	}
}

func (m *Manager) alternatives(s *Session) Alternatives {
	alt := Alternatives{CopyLink: m.CheckoutLink(s)}
	if s.Plan.HasWeixin() {
		alt.SwitchMethod = MethodWechatPay
	}
	return alt
}

// CheckoutLink 当前结算页链接，供复制到系统浏览器打开
func (m *Manager) CheckoutLink(s *Session) string {
	base := strings.TrimRight(strings.TrimSpace(m.opts.PublicBaseURL), "/")
	locale := s.Locale
	if locale == "" {
		locale = constants.LocaleZH
	}
	query := url.Values{"plan_id": {s.Plan.ID}}
	if key := s.renewal.Input(); key != "" {
		query.Set("renew", key)
	}
	return base + "/" + locale + "/checkout?" + query.Encode()
}
