package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/logger"

	"github.com/shopspring/decimal"
)

const (
	revenueMonthLayout = "200601"
	csvTimeLayout      = "2006-01-02 15:04:05"
	csvBOM             = "\ufeff"
)

// 收入统计按北京时间切分日期
var reportZone = time.FixedZone("CST", 8*3600)

var revenueCSVHeader = []string{"activated_at", "application", "plan", "user_agent", "source", "platform", "amount"}

// RevenueBackend 收入数据来源
type RevenueBackend interface {
	GetRevenue(ctx context.Context, q billing.RevenueQuery) ([]billing.RevenueRecord, error)
}

// RevenueSlice 分组统计
type RevenueSlice struct {
	Key     string `json:"key"`
	Count   int    `json:"count"`
	Amount  string `json:"amount"`
	Percent string `json:"percent"`
}

// RevenueDay 日统计
type RevenueDay struct {
	Date   string `json:"date"`
	Count  int    `json:"count"`
	Amount string `json:"amount"`
}

// RevenueReport 月度收入报表
type RevenueReport struct {
	RID           string                  `json:"rid"`
	Month         string                  `json:"month"`
	TotalCount    int                     `json:"total_count"`
	TotalAmount   string                  `json:"total_amount"`
	ByApplication []RevenueSlice          `json:"by_application"`
	ByPlan        []RevenueSlice          `json:"by_plan"`
	ByUserAgent   []RevenueSlice          `json:"by_user_agent"`
	BySource      []RevenueSlice          `json:"by_source"`
	Daily         []RevenueDay            `json:"daily"`
	Records       []billing.RevenueRecord `json:"records"`
}

// RevenueService 收入看板服务
type RevenueService struct {
	backend RevenueBackend
}

// NewRevenueService 创建收入服务
func NewRevenueService(backend RevenueBackend) *RevenueService {
	return &RevenueService{backend: backend}
}

// Fetch 拉取收入明细，令牌原样透传给后端
func (s *RevenueService) Fetch(ctx context.Context, q billing.RevenueQuery) ([]billing.RevenueRecord, error) {
	q.RID = strings.TrimSpace(q.RID)
	q.Month = strings.TrimSpace(q.Month)
	q.Token = strings.TrimSpace(q.Token)
	if q.Token == "" {
		return nil, ErrRevenueUnauthorized
	}
	if q.RID == "" {
		return nil, ErrRevenueQueryInvalid
	}
	if _, err := time.Parse(revenueMonthLayout, q.Month); err != nil {
		return nil, ErrRevenueQueryInvalid
	}
	records, err := s.backend.GetRevenue(ctx, q)
	if err != nil {
		if errors.Is(err, billing.ErrUnauthorized) {
			return nil, ErrRevenueUnauthorized
		}
		logger.Warnw("revenue_fetch_failed", "rid", q.RID, "month", q.Month, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRevenueFetchFailed, err)
	}
	if records == nil {
		records = []billing.RevenueRecord{}
	}
	return records, nil
}

// Report 拉取并汇总月度收入
func (s *RevenueService) Report(ctx context.Context, q billing.RevenueQuery) (*RevenueReport, error) {
	records, err := s.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return BuildRevenueReport(strings.TrimSpace(q.RID), strings.TrimSpace(q.Month), records), nil
}

// BuildRevenueReport 汇总收入明细
func BuildRevenueReport(rid, month string, records []billing.RevenueRecord) *RevenueReport {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	count := len(records)
	return &RevenueReport{
		RID:           rid,
		Month:         month,
		TotalCount:    count,
		TotalAmount:   total.StringFixed(2),
		ByApplication: groupRevenue(records, func(r billing.RevenueRecord) string { return r.Application }),
		ByPlan:        groupRevenue(records, func(r billing.RevenueRecord) string { return r.Plan }),
		ByUserAgent:   groupRevenue(records, func(r billing.RevenueRecord) string { return r.UserAgent }),
		BySource:      groupRevenue(records, func(r billing.RevenueRecord) string { return r.Source }),
		Daily:         dailyRevenue(month, records),
		Records:       records,
	}
}

type revenueBucket struct {
	key    string
	count  int
	amount decimal.Decimal
}

func groupRevenue(records []billing.RevenueRecord, keyOf func(billing.RevenueRecord) string) []RevenueSlice {
	buckets := make(map[string]*revenueBucket)
	for _, r := range records {
		key := strings.TrimSpace(keyOf(r))
		b, ok := buckets[key]
		if !ok {
			b = &revenueBucket{key: key, amount: decimal.Zero}
			buckets[key] = b
		}
		b.count++
		b.amount = b.amount.Add(r.Amount)
	}

	ordered := make([]*revenueBucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		if !ordered[i].amount.Equal(ordered[j].amount) {
			return ordered[i].amount.GreaterThan(ordered[j].amount)
		}
		return ordered[i].key < ordered[j].key
	})

	total := decimal.NewFromInt(int64(len(records)))
	hundred := decimal.NewFromInt(100)
	slices := make([]RevenueSlice, 0, len(ordered))
	for _, b := range ordered {
		percent := decimal.Zero
		if total.IsPositive() {
			percent = decimal.NewFromInt(int64(b.count)).Mul(hundred).Div(total)
		}
		slices = append(slices, RevenueSlice{
			Key:     b.key,
			Count:   b.count,
			Amount:  b.amount.StringFixed(2),
			Percent: percent.StringFixed(1),
		})
	}
	return slices
}

// dailyRevenue 按月生成逐日序列，无销售的日期计 0
func dailyRevenue(month string, records []billing.RevenueRecord) []RevenueDay {
	start, err := time.ParseInLocation(revenueMonthLayout, month, reportZone)
	if err != nil {
		return []RevenueDay{}
	}
	end := start.AddDate(0, 1, 0)
	days := make([]RevenueDay, 0, 31)
	amounts := make([]decimal.Decimal, 0, 31)
	index := make(map[string]int)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(time.DateOnly)
		index[date] = len(days)
		days = append(days, RevenueDay{Date: date})
		amounts = append(amounts, decimal.Zero)
	}
	for _, r := range records {
		i, ok := index[r.ActivatedAt.In(reportZone).Format(time.DateOnly)]
		if !ok {
			continue
		}
		days[i].Count++
		amounts[i] = amounts[i].Add(r.Amount)
	}
	for i := range days {
		days[i].Amount = amounts[i].StringFixed(2)
	}
	return days
}

// ExportCSV 导出收入明细，带 BOM 以便 Excel 识别 UTF-8
func ExportCSV(w io.Writer, records []billing.RevenueRecord) error {
	if _, err := io.WriteString(w, csvBOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(revenueCSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ActivatedAt.In(reportZone).Format(csvTimeLayout),
			r.Application,
			r.Plan,
			r.UserAgent,
			r.Source,
			r.Platform,
			r.Amount.StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// CSVFilename 导出文件名
func CSVFilename(rid, month string) string {
	return fmt.Sprintf("MirrorChyan Sales %s %s.csv", strings.TrimSpace(rid), strings.TrimSpace(month))
}
