package epay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nanobanana_backend/internal/pkg/config"
)

// 网关交易状态
const TradeStatusSuccess = "TRADE_SUCCESS"

// ErrGatewayUnavailable 网关不可达或返回非预期内容
var ErrGatewayUnavailable = errors.New("epay gateway unavailable")

// Client 易支付V1网关客户端
type Client struct {
	cfg        config.EpayConfig
	httpClient *http.Client
}

// NewClient 创建网关客户端，要求配置完整
func NewClient(cfg config.EpayConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, errors.New("epay is not enabled")
	}
	if cfg.PID == "" || cfg.Key == "" || cfg.APIURL == "" {
		return nil, errors.New("epay config missing pid/key/api_url")
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// CreateOrderInput 创建订单参数
type CreateOrderInput struct {
	Type       string // wxpay / alipay
	OutTradeNo string
	Name       string
	Money      string // 两位小数字符串
	ClientIP   string
	Param      string // 透传参数
	ReturnURL  string
}

// CreateOrderResult 网关下单响应
type CreateOrderResult struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	TradeNo string `json:"trade_no"`
	PayURL  string `json:"payurl"`
	QRCode  string `json:"qrcode"`
}

// CreateOrder 调用 mapi.php 创建支付订单
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	params := map[string]string{
		"pid":          c.cfg.PID,
		"type":         in.Type,
		"out_trade_no": in.OutTradeNo,
		"notify_url":   c.cfg.NotifyURL,
		"name":         in.Name,
		"money":        in.Money,
		"clientip":     in.ClientIP,
		"param":        in.Param,
		"sign_type":    "MD5",
	}
	if in.ReturnURL != "" {
		params["return_url"] = in.ReturnURL
	} else if c.cfg.ReturnURL != "" {
		params["return_url"] = c.cfg.ReturnURL
	}
	if params["clientip"] == "" {
		params["clientip"] = "127.0.0.1"
	}
	params["sign"] = Sign(params, c.cfg.Key)

	body, err := c.postForm(ctx, c.cfg.APIURL+"/mapi.php", params, 30*time.Second)
	if err != nil {
		return nil, err
	}

	var result CreateOrderResult
	if err := json.Unmarshal(body, &result); err != nil {
		// 部分网关直接返回支付链接而非 JSON
		text := strings.TrimSpace(string(body))
		if strings.HasPrefix(text, "http") {
			return &CreateOrderResult{Code: 1, Msg: "success", PayURL: text}, nil
		}
		return nil, fmt.Errorf("%w: unexpected response %q", ErrGatewayUnavailable, truncate(text, 200))
	}

	if result.Code != 1 {
		if result.Msg == "" {
			result.Msg = "创建订单失败"
		}
		return nil, fmt.Errorf("epay create order failed: %s", result.Msg)
	}
	return &result, nil
}

// QueryOrderResult 订单查询响应
type QueryOrderResult struct {
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
	TradeNo    string `json:"trade_no"`
	OutTradeNo string `json:"out_trade_no"`
	Type       string `json:"type"`
	Money      string `json:"money"`
	Status     int    `json:"status"` // 1 已支付
}

// QueryOrder 调用 api.php 查询订单状态
func (c *Client) QueryOrder(ctx context.Context, outTradeNo string) (*QueryOrderResult, error) {
	params := map[string]string{
		"pid":          c.cfg.PID,
		"out_trade_no": outTradeNo,
		"sign_type":    "MD5",
	}
	params["sign"] = Sign(params, c.cfg.Key)

	body, err := c.postForm(ctx, c.cfg.APIURL+"/api.php", params, 10*time.Second)
	if err != nil {
		return nil, err
	}

	var result QueryOrderResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: unexpected response", ErrGatewayUnavailable)
	}
	return &result, nil
}

// VerifyNotify 验证回调签名
func (c *Client) VerifyNotify(params map[string]string) bool {
	return Verify(params, c.cfg.Key)
}

func (c *Client) postForm(ctx context.Context, rawURL string, params map[string]string, timeout time.Duration) ([]byte, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GenerateOrderNo 生成商户订单号，EP + 毫秒时间戳 + 3位随机数
func GenerateOrderNo() string {
	return fmt.Sprintf("EP%d%03d", time.Now().UnixMilli(), rand.Intn(1000))
}

// PaymentMethod 支付方式描述
type PaymentMethod struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// GetPaymentMethods 根据开关返回可用支付方式
func GetPaymentMethods(wxpayEnabled, alipayEnabled, balanceEnabled bool) []PaymentMethod {
	methods := make([]PaymentMethod, 0, 3)
	if balanceEnabled {
		methods = append(methods, PaymentMethod{
			Type: "balance", Name: "账户余额", Icon: "💰", Description: "使用账户余额支付",
		})
	}
	if wxpayEnabled {
		methods = append(methods, PaymentMethod{
			Type: "wxpay", Name: "微信支付", Icon: "💚", Description: "使用微信扫码支付",
		})
	}
	if alipayEnabled {
		methods = append(methods, PaymentMethod{
			Type: "alipay", Name: "支付宝", Icon: "💙", Description: "使用支付宝扫码支付",
		})
	}
	return methods
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
