package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
)

const (
	licenseKeyFresh   = "AAAAAAAAAAAAAAAAAAAAAAAA"
	licenseKeyOld     = "BBBBBBBBBBBBBBBBBBBBBBBB"
	licenseKeyExpired = "CCCCCCCCCCCCCCCCCCCCCCCC"
	licenseKeyBroken  = "DDDDDDDDDDDDDDDDDDDDDDDD"
)

type fakeKeyBackend struct {
	now         time.Time
	transferred [][2]string
	transferErr error
}

func (f *fakeKeyBackend) GetAfdianOrder(_ context.Context, orderID string) (*billing.AfdianOrder, error) {
	switch orderID {
	case "af-ok":
		return &billing.AfdianOrder{CDK: licenseKeyFresh, ExpiredAt: f.now.Add(30 * 24 * time.Hour)}, nil
	case "af-expired":
		return &billing.AfdianOrder{CDK: licenseKeyExpired, ExpiredAt: f.now.Add(-time.Hour)}, nil
	case "af-pending":
		return nil, &billing.BusinessError{Code: 1, Msg: "order not paid"}
	default:
		return nil, billing.ErrNotFound
	}
}

func (f *fakeKeyBackend) QueryOrder(_ context.Context, customOrderID string) (*billing.OrderStatus, error) {
	if customOrderID == "paid" {
		return &billing.OrderStatus{Code: 0, CDK: licenseKeyFresh, ExpiredAt: "2030-01-01T00:00:00Z"}, nil
	}
	return &billing.OrderStatus{Code: 1, Msg: "pending"}, nil
}

func (f *fakeKeyBackend) LookupKey(_ context.Context, cdk string) (*billing.KeyInfo, error) {
	switch cdk {
	case licenseKeyFresh:
		return &billing.KeyInfo{ExpiredAt: f.now.Add(30 * 24 * time.Hour), CreatedAt: f.now.Add(-time.Hour), CustomOrderID: "c-fresh"}, nil
	case licenseKeyOld:
		return &billing.KeyInfo{ExpiredAt: f.now.Add(30 * 24 * time.Hour), CreatedAt: f.now.Add(-4 * 24 * time.Hour), CustomOrderID: "c-old"}, nil
	case licenseKeyExpired:
		return &billing.KeyInfo{ExpiredAt: f.now.Add(-time.Hour), CreatedAt: f.now.Add(-time.Hour), CustomOrderID: "c-expired"}, nil
	case licenseKeyBroken:
		return nil, &billing.BusinessError{Code: 500, Msg: "db down"}
	default:
		return nil, billing.ErrNotFound
	}
}

func (f *fakeKeyBackend) GetReward(_ context.Context, key string) (*billing.RewardInfo, error) {
	switch key {
	case "REWARD-OK":
		return &billing.RewardInfo{Remaining: 3, StartAt: f.now.Add(-time.Hour), ExpiredAt: f.now.Add(time.Hour), ValidDays: 7}, nil
	case "REWARD-USED":
		return &billing.RewardInfo{Remaining: 0, ValidDays: 7}, nil
	case "REWARD-LATER":
		return &billing.RewardInfo{Remaining: 1, StartAt: f.now.Add(time.Hour), ValidDays: 7}, nil
	case "REWARD-OVER":
		return &billing.RewardInfo{Remaining: 1, ExpiredAt: f.now.Add(-time.Hour), ValidDays: 7}, nil
	default:
		return nil, billing.ErrNotFound
	}
}

func (f *fakeKeyBackend) TransferKey(_ context.Context, from, to string) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	f.transferred = append(f.transferred, [2]string{from, to})
	return nil
}

func newTestKeyService() (*KeyService, *fakeKeyBackend) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	backend := &fakeKeyBackend{now: now}
	svc := NewKeyService(backend)
	svc.now = func() time.Time { return now }
	return svc, backend
}

func TestShowKey(t *testing.T) {
	svc, _ := newTestKeyService()
	ctx := context.Background()

	shown, err := svc.ShowKey(ctx, "af-ok")
	if err != nil || shown.CDK != licenseKeyFresh || shown.Expired {
		t.Fatalf("unexpected show key: %+v %v", shown, err)
	}
	shown, err = svc.ShowKey(ctx, "af-expired")
	if err != nil || !shown.Expired {
		t.Fatalf("expected expired key: %+v %v", shown, err)
	}
	if _, err := svc.ShowKey(ctx, "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	_, err = svc.ShowKey(ctx, "af-pending")
	if !errors.Is(err, ErrKeyLookupFailed) || BackendMessage(err) != "order not paid" {
		t.Fatalf("expected backend message to be kept, got %v", err)
	}
	if _, err := svc.ShowKey(ctx, "  "); !errors.Is(err, ErrKeyRequired) {
		t.Fatalf("expected ErrKeyRequired, got %v", err)
	}
}

func TestQueryOrder(t *testing.T) {
	svc, _ := newTestKeyService()
	result, err := svc.QueryOrder(context.Background(), "paid")
	if err != nil || !result.Fulfilled || result.CDK != licenseKeyFresh {
		t.Fatalf("unexpected lookup: %+v %v", result, err)
	}
	result, err = svc.QueryOrder(context.Background(), "waiting")
	if err != nil || result.Fulfilled || result.CDK != "" || result.Message != "pending" {
		t.Fatalf("unexpected pending lookup: %+v %v", result, err)
	}
}

func TestCheckTransferSource(t *testing.T) {
	svc, _ := newTestKeyService()
	cases := []struct {
		key    string
		kind   string
		valid  bool
		reason string
	}{
		{"REWARD-OK", KeyKindReward, true, ""},
		{"REWARD-USED", KeyKindReward, false, KeyReasonRewardUsedUp},
		{"REWARD-LATER", KeyKindReward, false, KeyReasonRewardNotStarted},
		{"REWARD-OVER", KeyKindReward, false, KeyReasonRewardExpired},
		{"REWARD-NONE", KeyKindReward, false, KeyReasonNotFound},
		{licenseKeyFresh, KeyKindLicense, true, ""},
		{licenseKeyOld, KeyKindLicense, false, KeyReasonTooOld},
		{licenseKeyExpired, KeyKindLicense, false, KeyReasonExpired},
		{"ZZZZZZZZZZZZZZZZZZZZZZZZ", KeyKindLicense, false, KeyReasonNotFound},
	}
	for _, tc := range cases {
		check, err := svc.CheckTransferSource(context.Background(), tc.key)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.key, err)
		}
		if check.Kind != tc.kind || check.Valid != tc.valid || check.Reason != tc.reason {
			t.Fatalf("%s: unexpected check %+v", tc.key, check)
		}
	}

	check, _ := svc.CheckTransferSource(context.Background(), "REWARD-OK")
	if check.ValidDays != 7 {
		t.Fatalf("expected valid days on reward key, got %d", check.ValidDays)
	}
	if _, err := svc.CheckTransferSource(context.Background(), licenseKeyBroken); !errors.Is(err, ErrKeyLookupFailed) {
		t.Fatalf("expected ErrKeyLookupFailed, got %v", err)
	}
}

func TestCheckTransferTarget(t *testing.T) {
	svc, _ := newTestKeyService()
	ctx := context.Background()

	check, err := svc.CheckTransferTarget(ctx, "REWARD-OK")
	if err != nil || check.Valid || check.Reason != KeyReasonRewardFillInLeft {
		t.Fatalf("reward key must be rejected as target: %+v %v", check, err)
	}
	check, err = svc.CheckTransferTarget(ctx, licenseKeyExpired)
	if err != nil || !check.Valid || check.Notice != KeyNoticeTargetExpired || check.CustomOrderID != "c-expired" {
		t.Fatalf("expired license key is a valid target with notice: %+v %v", check, err)
	}
	check, err = svc.CheckTransferTarget(ctx, licenseKeyOld)
	if err != nil || !check.Valid || check.Notice != "" {
		t.Fatalf("old license key is a valid target: %+v %v", check, err)
	}
}

func TestTransfer(t *testing.T) {
	svc, backend := newTestKeyService()
	ctx := context.Background()

	if err := svc.Transfer(ctx, licenseKeyFresh, " "+licenseKeyFresh+" "); !errors.Is(err, ErrTransferSameKey) {
		t.Fatalf("expected ErrTransferSameKey, got %v", err)
	}
	if len(backend.transferred) != 0 {
		t.Fatalf("identical keys must not reach the backend")
	}
	if err := svc.Transfer(ctx, "REWARD-OK", licenseKeyFresh); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if len(backend.transferred) != 1 || backend.transferred[0][0] != "REWARD-OK" {
		t.Fatalf("unexpected backend calls: %+v", backend.transferred)
	}

	backend.transferErr = &billing.BusinessError{Code: 400, Msg: "source already used"}
	err := svc.Transfer(ctx, licenseKeyOld, licenseKeyFresh)
	if !errors.Is(err, ErrTransferFailed) || BackendMessage(err) != "source already used" {
		t.Fatalf("expected transfer failure with backend message, got %v", err)
	}
}
