package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/metrics"

	"k8s.io/utils/clock"
)

const (
	defaultRenewalDebounce = 1500 * time.Millisecond
	defaultRenewalTimeout  = 10 * time.Second
	maxRenewalKeyLength    = 64
)

// VerdictKind 续费校验结论
type VerdictKind string

const (
	VerdictEmpty      VerdictKind = "empty"
	VerdictOK         VerdictKind = "ok"
	VerdictMalformed  VerdictKind = "malformed"
	VerdictNotFound   VerdictKind = "not_found"
	VerdictCheckError VerdictKind = "check_error"
)

// Verdict 续费 CDK 校验结果
type Verdict struct {
	Kind       VerdictKind `json:"kind"`
	Valid      bool        `json:"valid"`
	MessageKey string      `json:"message_key,omitempty"`
	ExpiredAt  *time.Time  `json:"expired_at,omitempty"`
}

// KeyLookup CDK 查询接口
type KeyLookup interface {
	LookupKey(ctx context.Context, cdk string) (*billing.KeyInfo, error)
}

type cachedVerdict struct {
	input   string
	verdict Verdict
}

// RenewalValidator 续费 CDK 校验
// 同一输入只发起一次查询；输入变化后缓存立即失效。
type RenewalValidator struct {
	lookup   KeyLookup
	clock    clock.WithDelayedExecution
	debounce time.Duration
	timeout  time.Duration
	onLive   func(Verdict)

	mu         sync.Mutex
	input      string
	generation uint64
	cached     *cachedVerdict
	live       *Verdict
	timer      clock.Timer
	closed     bool
}

// RenewalOptions 校验器参数
type RenewalOptions struct {
	Debounce time.Duration
	Timeout  time.Duration
	Clock    clock.WithDelayedExecution
	OnLive   func(Verdict)
}

// NewRenewalValidator 创建校验器
func NewRenewalValidator(lookup KeyLookup, opts RenewalOptions) *RenewalValidator {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultRenewalDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRenewalTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &RenewalValidator{
		lookup:   lookup,
		clock:    opts.Clock,
		debounce: opts.Debounce,
		timeout:  opts.Timeout,
		onLive:   opts.OnLive,
	}
}

// Validate 校验 CDK，空值视为新购
func (v *RenewalValidator) Validate(ctx context.Context, cdk string) Verdict {
	cdk = NormalizeKey(cdk)
	if verdict, ok := localVerdict(cdk); ok {
		return verdict
	}

	v.mu.Lock()
	if v.cached != nil && v.cached.input == cdk {
		verdict := v.cached.verdict
		v.mu.Unlock()
		return verdict
	}
	gen := v.generation
	v.mu.Unlock()

	verdict := v.check(ctx, cdk)

	v.mu.Lock()
	// 查询期间输入被改动则不写缓存
	if gen == v.generation && !v.closed {
		v.cached = &cachedVerdict{input: cdk, verdict: verdict}
	}
	v.mu.Unlock()
	return verdict
}

// Observe 输入变化时调用，停止输入一段时间后自动校验
func (v *RenewalValidator) Observe(cdk string) {
	cdk = NormalizeKey(cdk)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if cdk == v.input {
		v.mu.Unlock()
		return
	}
	v.input = cdk
	v.generation++
	v.cached = nil
	v.live = nil
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	if verdict, ok := localVerdict(cdk); ok {
		v.live = &verdict
		v.mu.Unlock()
		v.notify(verdict)
		return
	}
	gen := v.generation
	v.timer = v.clock.AfterFunc(v.debounce, func() { v.fire(gen, cdk) })
	v.mu.Unlock()
}

// Input 最近一次观察到的输入
func (v *RenewalValidator) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

// Live 当前输入的实时校验结果
func (v *RenewalValidator) Live() (Verdict, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.live == nil {
		return Verdict{}, false
	}
	return *v.live, true
}

// Close 停止挂起的校验
func (v *RenewalValidator) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.generation++
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}

func (v *RenewalValidator) fire(gen uint64, cdk string) {
	v.mu.Lock()
	if gen != v.generation || v.closed {
		v.mu.Unlock()
		return
	}
	v.timer = nil
	v.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	verdict := v.Validate(ctx, cdk)

	v.mu.Lock()
	if gen != v.generation || v.closed {
		v.mu.Unlock()
		return
	}
	v.live = &verdict
	v.mu.Unlock()
	v.notify(verdict)
}

func (v *RenewalValidator) notify(verdict Verdict) {
	if v.onLive != nil {
		v.onLive(verdict)
	}
}

func (v *RenewalValidator) check(ctx context.Context, cdk string) Verdict {
	info, err := v.lookup.LookupKey(ctx, cdk)
	var verdict Verdict
	switch {
	case err == nil:
		verdict = Verdict{Kind: VerdictOK, Valid: true}
		if info != nil && !info.ExpiredAt.IsZero() {
			expiredAt := info.ExpiredAt
			verdict.ExpiredAt = &expiredAt
		}
	case errors.Is(err, billing.ErrNotFound):
		verdict = Verdict{Kind: VerdictNotFound, MessageKey: "checkout.cdk_invalid"}
	default:
		verdict = Verdict{Kind: VerdictCheckError, MessageKey: "checkout.cdk_check_error"}
	}
	metrics.ObserveRenewalValidation(string(verdict.Kind))
	return verdict
}

// localVerdict 无需查询即可得出的结论
func localVerdict(cdk string) (Verdict, bool) {
	if cdk == "" {
		return Verdict{Kind: VerdictEmpty, Valid: true}, true
	}
	if !wellFormedKey(cdk) {
		return Verdict{Kind: VerdictMalformed, MessageKey: "checkout.cdk_malformed"}, true
	}
	return Verdict{}, false
}

// NormalizeKey 去除首尾空白
func NormalizeKey(cdk string) string {
	return strings.TrimSpace(cdk)
}

func wellFormedKey(cdk string) bool {
	if len(cdk) > maxRenewalKeyLength {
		return false
	}
	for _, r := range cdk {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
