package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"

	"github.com/shopspring/decimal"
)

type fakeRevenueBackend struct {
	records []billing.RevenueRecord
	err     error
	last    billing.RevenueQuery
}

func (f *fakeRevenueBackend) GetRevenue(_ context.Context, q billing.RevenueQuery) ([]billing.RevenueRecord, error) {
	f.last = q
	return f.records, f.err
}

func revenueRecord(day int, app, plan, ua, source, amount string) billing.RevenueRecord {
	return billing.RevenueRecord{
		ActivatedAt: time.Date(2025, 1, day, 4, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString(amount),
		Application: app,
		Plan:        plan,
		UserAgent:   ua,
		Platform:    "alipay",
		Source:      source,
		BuyCount:    1,
	}
}

func sampleRevenueRecords() []billing.RevenueRecord {
	return []billing.RevenueRecord{
		revenueRecord(1, "MAA", "Monthly", "MAA", "web", "10"),
		revenueRecord(1, "MAA", "Yearly", "MAA", "web", "100"),
		revenueRecord(2, "M9A", "Monthly", "M9A", "app", "10"),
		revenueRecord(31, "MAA", "Monthly", "MaaPi", "web", "10"),
	}
}

func TestBuildRevenueReport(t *testing.T) {
	report := BuildRevenueReport("MAA", "202501", sampleRevenueRecords())
	if report.TotalCount != 4 || report.TotalAmount != "130.00" {
		t.Fatalf("unexpected totals: %d %s", report.TotalCount, report.TotalAmount)
	}
	apps := report.ByApplication
	if len(apps) != 2 || apps[0].Key != "MAA" || apps[0].Count != 3 || apps[0].Amount != "120.00" || apps[0].Percent != "75.0" {
		t.Fatalf("unexpected application slices: %+v", apps)
	}
	plans := report.ByPlan
	if plans[0].Key != "Monthly" || plans[0].Count != 3 || plans[1].Percent != "25.0" {
		t.Fatalf("unexpected plan slices: %+v", plans)
	}
	// 数量与金额都相同时按名称排序
	uas := report.ByUserAgent
	if uas[0].Key != "MAA" || uas[1].Key != "M9A" || uas[2].Key != "MaaPi" {
		t.Fatalf("unexpected user agent slices: %+v", uas)
	}
	if len(report.Daily) != 31 {
		t.Fatalf("expected 31 days, got %d", len(report.Daily))
	}
	if report.Daily[0].Date != "2025-01-01" || report.Daily[0].Count != 2 || report.Daily[0].Amount != "110.00" {
		t.Fatalf("unexpected first day: %+v", report.Daily[0])
	}
	if report.Daily[30].Count != 1 || report.Daily[15].Amount != "0.00" {
		t.Fatalf("unexpected daily series: %+v", report.Daily)
	}
}

func TestRevenueSlicesTieBreakOnAmount(t *testing.T) {
	records := []billing.RevenueRecord{
		revenueRecord(1, "A", "p", "ua", "web", "5"),
		revenueRecord(1, "B", "p", "ua", "web", "50"),
	}
	slices := groupRevenue(records, func(r billing.RevenueRecord) string { return r.Application })
	if slices[0].Key != "B" || slices[1].Key != "A" {
		t.Fatalf("expected amount tie-break, got %+v", slices)
	}
}

func TestRevenueReportValidation(t *testing.T) {
	backend := &fakeRevenueBackend{records: sampleRevenueRecords()}
	svc := NewRevenueService(backend)
	ctx := context.Background()

	if _, err := svc.Report(ctx, billing.RevenueQuery{RID: "MAA", Month: "202501"}); !errors.Is(err, ErrRevenueUnauthorized) {
		t.Fatalf("expected ErrRevenueUnauthorized without token, got %v", err)
	}
	if _, err := svc.Report(ctx, billing.RevenueQuery{RID: "MAA", Month: "2025-01", Token: "t"}); !errors.Is(err, ErrRevenueQueryInvalid) {
		t.Fatalf("expected ErrRevenueQueryInvalid, got %v", err)
	}
	if _, err := svc.Report(ctx, billing.RevenueQuery{Month: "202501", Token: "t"}); !errors.Is(err, ErrRevenueQueryInvalid) {
		t.Fatalf("expected ErrRevenueQueryInvalid without rid, got %v", err)
	}

	report, err := svc.Report(ctx, billing.RevenueQuery{RID: " MAA ", Month: "202501", IsUA: true, Token: "t"})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if backend.last.RID != "MAA" || !backend.last.IsUA || backend.last.Token != "t" {
		t.Fatalf("unexpected backend query: %+v", backend.last)
	}
	if report.TotalCount != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}

	backend.err = billing.ErrUnauthorized
	if _, err := svc.Report(ctx, billing.RevenueQuery{RID: "MAA", Month: "202501", Token: "t"}); !errors.Is(err, ErrRevenueUnauthorized) {
		t.Fatalf("expected ErrRevenueUnauthorized, got %v", err)
	}
	backend.err = billing.ErrRequestFailed
	if _, err := svc.Report(ctx, billing.RevenueQuery{RID: "MAA", Month: "202501", Token: "t"}); !errors.Is(err, ErrRevenueFetchFailed) {
		t.Fatalf("expected ErrRevenueFetchFailed, got %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	records := []billing.RevenueRecord{revenueRecord(2, "MAA", "Monthly, Pro", "MAA", "web", "12.5")}
	if err := ExportCSV(&buf, records); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\ufeff") {
		t.Fatalf("expected BOM prefix")
	}
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(out, "\ufeff")), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected csv lines: %q", lines)
	}
	if lines[0] != "activated_at,application,plan,user_agent,source,platform,amount" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if lines[1] != `2025-01-02 12:00:00,MAA,"Monthly, Pro",MAA,web,alipay,12.50` {
		t.Fatalf("unexpected row: %s", lines[1])
	}
	if got := CSVFilename("MAA", "202501"); got != "MirrorChyan Sales MAA 202501.csv" {
		t.Fatalf("unexpected filename: %s", got)
	}
}
