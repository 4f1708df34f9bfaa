package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"

	testingclock "k8s.io/utils/clock/testing"
)

func TestValidateCachesVerdictForSameInput(t *testing.T) {
	backend := &fakeBackend{}
	validator := NewRenewalValidator(backend, RenewalOptions{})
	ctx := context.Background()

	first := validator.Validate(ctx, "ABC")
	second := validator.Validate(ctx, " ABC ")
	if !first.Valid || !second.Valid || first.Kind != VerdictOK {
		t.Fatalf("unexpected verdicts: %+v %+v", first, second)
	}
	if _, _, _, lookups := backend.counts(); lookups != 1 {
		t.Fatalf("expected one lookup, got %d", lookups)
	}
}

func TestValidateClassifiesFailures(t *testing.T) {
	backend := &fakeBackend{lookupFn: func(cdk string) (*billing.KeyInfo, error) {
		if cdk == "MISSING" {
			return nil, billing.ErrNotFound
		}
		return nil, billing.ErrRequestFailed
	}}
	validator := NewRenewalValidator(backend, RenewalOptions{})
	ctx := context.Background()

	notFound := validator.Validate(ctx, "MISSING")
	if notFound.Valid || notFound.Kind != VerdictNotFound || notFound.MessageKey != "checkout.cdk_invalid" {
		t.Fatalf("unexpected not found verdict: %+v", notFound)
	}
	checkErr := validator.Validate(ctx, "BROKEN")
	if checkErr.Valid || checkErr.Kind != VerdictCheckError {
		t.Fatalf("unexpected check error verdict: %+v", checkErr)
	}
}

func TestValidateEmptyAndMalformedSkipLookup(t *testing.T) {
	backend := &fakeBackend{}
	validator := NewRenewalValidator(backend, RenewalOptions{})
	ctx := context.Background()

	if v := validator.Validate(ctx, "   "); !v.Valid || v.Kind != VerdictEmpty {
		t.Fatalf("empty input should be a valid new purchase: %+v", v)
	}
	if v := validator.Validate(ctx, "bad key!"); v.Valid || v.Kind != VerdictMalformed {
		t.Fatalf("expected malformed verdict: %+v", v)
	}
	if _, _, _, lookups := backend.counts(); lookups != 0 {
		t.Fatalf("no lookups expected, got %d", lookups)
	}
}

func TestObserveInvalidatesCache(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	backend := &fakeBackend{}
	validator := NewRenewalValidator(backend, RenewalOptions{Clock: clk})
	ctx := context.Background()

	validator.Validate(ctx, "ABC")
	validator.Observe("ABD")
	validator.Observe("ABC")
	validator.Validate(ctx, "ABC")
	if _, _, _, lookups := backend.counts(); lookups != 2 {
		t.Fatalf("expected cache invalidated by input change, got %d lookups", lookups)
	}
}

func TestObserveDebouncesLookups(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	backend := &fakeBackend{}
	validator := NewRenewalValidator(backend, RenewalOptions{Clock: clk, Debounce: 1500 * time.Millisecond})

	validator.Observe("AB")
	clk.Step(time.Second)
	validator.Observe("ABC")
	clk.Step(time.Second)
	time.Sleep(20 * time.Millisecond)
	if _, _, _, lookups := backend.counts(); lookups != 0 {
		t.Fatalf("lookup fired before debounce elapsed: %d", lookups)
	}

	clk.Step(500 * time.Millisecond)
	waitFor(t, func() bool {
		_, ok := validator.Live()
		return ok
	})
	verdict, _ := validator.Live()
	if !verdict.Valid || verdict.ExpiredAt == nil {
		t.Fatalf("unexpected live verdict: %+v", verdict)
	}
	_, _, _, lookups := backend.counts()
	if lookups != 1 || backend.lastLookupKey != "ABC" {
		t.Fatalf("expected single lookup of latest input, got %d for %q", lookups, backend.lastLookupKey)
	}

	// 防抖校验后的提交校验直接复用结果
	validator.Validate(context.Background(), "ABC")
	if _, _, _, lookups := backend.counts(); lookups != 1 {
		t.Fatalf("submit validation should reuse debounced result, got %d", lookups)
	}
}

func TestObserveEmptyIsImmediatelyValid(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	validator := NewRenewalValidator(&fakeBackend{}, RenewalOptions{Clock: clk})
	validator.Observe("ABC")
	validator.Observe("")
	verdict, ok := validator.Live()
	if !ok || !verdict.Valid || verdict.Kind != VerdictEmpty {
		t.Fatalf("expected immediate empty verdict, got %+v %v", verdict, ok)
	}
	if clk.HasWaiters() {
		t.Fatalf("pending debounce should be cancelled")
	}
}
