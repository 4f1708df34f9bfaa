package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/logger"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrRequestFailed 网络或 HTTP 层失败
	ErrRequestFailed = errors.New("billing request failed")
	// ErrResponseInvalid 响应无法解析
	ErrResponseInvalid = errors.New("billing response invalid")
	// ErrNotFound 后端返回 404 语义
	ErrNotFound = errors.New("billing resource not found")
	// ErrUnauthorized 后端拒绝凭证
	ErrUnauthorized = errors.New("billing unauthorized")
)

// BusinessError 后端业务失败（响应码非成功）
type BusinessError struct {
	Code int
	Msg  string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("billing business error: code=%d msg=%s", e.Code, e.Msg)
}

// Config 客户端配置
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client 计费后端客户端
type Client struct {
	http *resty.Client
}

type envelope struct {
	EC   *int            `json:"ec"`
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// status 返回响应码，misc 接口使用 ec，下单接口使用 code
func (e *envelope) status() int {
	if e.EC != nil {
		return *e.EC
	}
	if e.Code != nil {
		return *e.Code
	}
	return -1
}

// orderCode 下单与查单接口以 code 为准，仅返回 ec 时将 200 视为 0
func (e *envelope) orderCode() int {
	if e.Code != nil {
		return *e.Code
	}
	if e.EC != nil && *e.EC == 200 {
		return 0
	}
	return e.status()
}

// New 创建客户端
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		httpClient.SetHeader("User-Agent", ua)
	}
	return &Client{http: httpClient}
}

// GetPlan 查询套餐详情
func (c *Client) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	env, err := c.get(ctx, "/api/misc/plan/"+url.PathEscape(planID), nil, "")
	if err != nil {
		return nil, err
	}
	if err := expectEC(env); err != nil {
		return nil, err
	}
	var plan Plan
	if err := decodeData(env, &plan); err != nil {
		return nil, err
	}
	plan.ID = planID
	return &plan, nil
}

// ListPlans 查询套餐列表
func (c *Client) ListPlans(ctx context.Context, typeID string) (*PlanList, error) {
	params := url.Values{}
	if typeID = strings.TrimSpace(typeID); typeID != "" {
		params.Set("type_id", typeID)
	}
	env, err := c.get(ctx, "/api/misc/plan", params, "")
	if err != nil {
		return nil, err
	}
	if err := expectEC(env); err != nil {
		return nil, err
	}
	var list PlanList
	if err := decodeData(env, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateOrder 按平台创建订单，code 非 0 返回 BusinessError
func (c *Client) CreateOrder(ctx context.Context, platform string, params CreateOrderParams) (*CreateOrderResult, error) {
	query := url.Values{}
	query.Set("plan_id", params.PlanID)
	if params.PayType != "" {
		query.Set("pay", params.PayType)
	}
	query.Set("source", params.Source)
	if params.Renew != "" {
		query.Set("renew", params.Renew)
	}
	env, err := c.get(ctx, "/api/billing/order/"+url.PathEscape(platform)+"/create", query, "")
	if err != nil {
		return nil, err
	}
	if code := env.orderCode(); code != 0 {
		return nil, &BusinessError{Code: code, Msg: env.Msg}
	}
	var result CreateOrderResult
	if err := decodeData(env, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// QueryOrder 按关联单号查询订单状态，是否发货由调用方判断
func (c *Client) QueryOrder(ctx context.Context, customOrderID string) (*OrderStatus, error) {
	env, err := c.get(ctx, "/api/billing/order/query", url.Values{"custom_order_id": {customOrderID}}, "")
	if err != nil {
		return nil, err
	}
	status := &OrderStatus{}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		// 未发货时 data 可能不是对象，按未发货处理
		if err := json.Unmarshal(env.Data, status); err != nil {
			logger.Debugw("billing_order_data_undecodable",
				"custom_order_id", customOrderID,
				"code", env.orderCode(),
				"error", err,
			)
		}
	}
	status.Code = env.orderCode()
	status.Msg = env.Msg
	return status, nil
}

// LookupKey 查询 CDK，404 语义返回 ErrNotFound
func (c *Client) LookupKey(ctx context.Context, cdk string) (*KeyInfo, error) {
	env, err := c.get(ctx, "/api/billing/order/query", url.Values{"cdk": {cdk}}, "")
	if err != nil {
		return nil, err
	}
	if err := expectEC(env); err != nil {
		return nil, err
	}
	var info KeyInfo
	if err := decodeData(env, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetAfdianOrder 按爱发电订单号查询 CDK
func (c *Client) GetAfdianOrder(ctx context.Context, orderID string) (*AfdianOrder, error) {
	env, err := c.get(ctx, "/api/billing/order/afdian", url.Values{"order_id": {orderID}}, "")
	if err != nil {
		return nil, err
	}
	if err := expectEC(env); err != nil {
		return nil, err
	}
	var order AfdianOrder
	if err := decodeData(env, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// TransferKey 将 from 的剩余时长转移到 to
func (c *Client) TransferKey(ctx context.Context, from, to string) error {
	env, err := c.get(ctx, "/api/billing/order/transfer", url.Values{"from": {from}, "to": {to}}, "")
	if err != nil {
		return err
	}
	return expectEC(env)
}

// GetReward 查询奖励码
func (c *Client) GetReward(ctx context.Context, key string) (*RewardInfo, error) {
	env, err := c.get(ctx, "/api/billing/reward", url.Values{"reward_key": {key}}, "")
	if err != nil {
		return nil, err
	}
	if err := expectEC(env); err != nil {
		return nil, err
	}
	var info RewardInfo
	if err := decodeData(env, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetRevenue 查询收入明细，token 原样透传给后端
func (c *Client) GetRevenue(ctx context.Context, q RevenueQuery) ([]RevenueRecord, error) {
	isUA := "0"
	if q.IsUA {
		isUA = "1"
	}
	params := url.Values{"rid": {q.RID}, "date": {q.Month}, "is_ua": {isUA}}
	env, err := c.get(ctx, "/api/billing/revenue", params, q.Token)
	if err != nil {
		return nil, err
	}
	if err := expectEC(env); err != nil {
		return nil, err
	}
	records := make([]RevenueRecord, 0)
	if err := decodeData(env, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetRate 查询汇率
func (c *Client) GetRate(ctx context.Context, from, to string) (*Rate, error) {
	env, err := c.get(ctx, "/api/misc/rate", url.Values{"from": {from}, "to": {to}}, "")
	if err != nil {
		return nil, err
	}
	if err := expectEC(env); err != nil {
		return nil, err
	}
	rate := Rate{From: from, To: to}
	if err := decodeData(env, &rate); err != nil {
		return nil, err
	}
	if !rate.Rate.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive rate %s", ErrResponseInvalid, rate.Rate.String())
	}
	return &rate, nil
}

// GetAnnouncement 查询公告
func (c *Client) GetAnnouncement(ctx context.Context, lang string) (*Announcement, error) {
	env, err := c.get(ctx, "/api/misc/anno", url.Values{"lang": {lang}}, "")
	if err != nil {
		return nil, err
	}
	if err := expectEC(env); err != nil {
		return nil, err
	}
	var anno Announcement
	if err := decodeData(env, &anno); err != nil {
		return nil, err
	}
	return &anno, nil
}

// ListProjects 查询项目列表
func (c *Client) ListProjects(ctx context.Context, typeID string) ([]Project, error) {
	params := url.Values{}
	if typeID = strings.TrimSpace(typeID); typeID != "" {
		params.Set("type_id", typeID)
	}
	env, err := c.get(ctx, "/api/misc/project", params, "")
	if err != nil {
		return nil, err
	}
	if err := expectEC(env); err != nil {
		return nil, err
	}
	projects := make([]Project, 0)
	if err := decodeData(env, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetContact 查询联系方式
func (c *Client) GetContact(ctx context.Context) (*Contact, error) {
	env, err := c.get(ctx, "/api/misc/contact_us", nil, "")
	if err != nil {
		return nil, err
	}
	var contact Contact
	if err := decodeData(env, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, token string) (*envelope, error) {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParamsFromValues(params)
	}
	if token != "" {
		req.SetHeader("Authorization", token)
	}
	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return nil, ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, ErrUnauthorized
	case code < 200 || code >= 300:
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, code)
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &env, nil
}

func expectEC(env *envelope) error {
	switch code := env.status(); code {
	case 200:
		return nil
	case 404:
		return ErrNotFound
	default:
		return &BusinessError{Code: code, Msg: env.Msg}
	}
}

func decodeData(env *envelope, dest interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: empty data", ErrResponseInvalid)
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return nil
}
