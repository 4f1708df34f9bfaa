package checkout

import (
	"errors"
	"sync"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/constants"
)

var (
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrPaymentInProgress  = errors.New("payment creation in progress")
	ErrInAppBrowserHazard = errors.New("alipay is unreliable inside in-app browsers")
	ErrRenewalRejected    = errors.New("renewal key rejected")
	ErrCorrelationReused  = errors.New("correlation id already used")
	ErrNoActivePayment    = errors.New("no active payment")
)

// Alternatives 应用内浏览器中支付宝不可用时的替代方案
type Alternatives struct {
	SwitchMethod Method `json:"switch_method,omitempty"`
	CopyLink     string `json:"copy_link"`
}

// HazardError 需要用户确认后才能继续的支付宝应用内风险
type HazardError struct {
	Alternatives Alternatives
}

func (e *HazardError) Error() string { return ErrInAppBrowserHazard.Error() }

func (e *HazardError) Is(target error) bool { return target == ErrInAppBrowserHazard }

// RenewalError 续费 CDK 未通过校验
type RenewalError struct {
	Verdict Verdict
}

func (e *RenewalError) Error() string {
	return ErrRenewalRejected.Error() + ": " + string(e.Verdict.Kind)
}

func (e *RenewalError) Is(target error) bool { return target == ErrRenewalRejected }

// Session 结算会话，对应一个打开的结算页
type Session struct {
	ID        string
	Plan      *billing.Plan
	Locale    string
	Source    string
	Env       Environment
	Price     PriceInfo
	CreatedAt time.Time

	mu                sync.Mutex
	method            Method
	availability      Availability
	state             string
	paying            bool
	payment           *Payment
	fulfilled         *billing.OrderStatus
	renewedWith       string
	warningKey        string
	timedOut          bool
	inAppAcknowledged bool
	usedCorrelations  map[string]struct{}
	lastActive        time.Time
	closed            bool

	poller  *Poller
	renewal *RenewalValidator
}

// OrderView 已发货订单
type OrderView struct {
	CDK       string `json:"cdk"`
	ExpiredAt string `json:"expired_at,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Renewal   bool   `json:"renewal"`
}

// SessionView 会话快照
type SessionView struct {
	ID           string       `json:"id"`
	PlanID       string       `json:"plan_id"`
	PlanTitle    string       `json:"plan_title"`
	Locale       string       `json:"locale"`
	State        string       `json:"state"`
	Method       Method       `json:"method"`
	Methods      []Method     `json:"methods"`
	Availability Availability `json:"availability"`
	Price        PriceInfo    `json:"price"`
	Environment  Environment  `json:"environment"`
	CanTryH5     bool         `json:"can_try_h5"`
	InAppHazard  bool         `json:"in_app_hazard"`
	Renewal      *Verdict     `json:"renewal,omitempty"`
	Payment      *Payment     `json:"payment,omitempty"`
	Order        *OrderView   `json:"order,omitempty"`
	PollState    PollState    `json:"poll_state"`
	PollDeadline *time.Time   `json:"poll_deadline,omitempty"`
	WarningKey   string       `json:"warning_key,omitempty"`
	TimedOut     bool         `json:"timed_out"`
	CreatedAt    time.Time    `json:"created_at"`
}

// View 生成快照
func (s *Session) View() SessionView {
	s.mu.Lock()
	view := SessionView{
		ID:           s.ID,
		PlanID:       s.Plan.ID,
		PlanTitle:    s.Plan.Title,
		Locale:       s.Locale,
		State:        s.state,
		Method:       s.method,
		Methods:      s.availability.Methods(),
		Availability: s.availability,
		Price:        s.Price,
		Environment:  s.Env,
		CanTryH5:     s.Env.CanTryH5(),
		InAppHazard:  s.Env.HazardFor(s.method) && !s.inAppAcknowledged,
		WarningKey:   s.warningKey,
		TimedOut:     s.timedOut,
		CreatedAt:    s.CreatedAt,
	}
	if s.payment != nil {
		payment := *s.payment
		view.Payment = &payment
	}
	if s.fulfilled != nil {
		view.Order = &OrderView{
			CDK:       s.fulfilled.CDK,
			ExpiredAt: s.fulfilled.ExpiredAt,
			CreatedAt: s.fulfilled.CreatedAt,
			Renewal:   s.renewedWith != "",
		}
	}
	s.mu.Unlock()

	if verdict, ok := s.renewal.Live(); ok {
		view.Renewal = &verdict
	}
	view.PollState = s.poller.State()
	if view.PollState == PollPolling {
		deadline := s.poller.Deadline()
		view.PollDeadline = &deadline
	}
	return view
}

// Method 当前支付方式
func (s *Session) Method() Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// State 当前状态
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Payment 当前支付
func (s *Session) Payment() *Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}

// resetToReadyLocked 回到可重新发起支付的状态
func (s *Session) resetToReadyLocked() {
	s.state = constants.CheckoutSessionReady
	s.payment = nil
}
