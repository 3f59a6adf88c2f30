package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// 主网 API 地址
	MainnetRestURL = "https://api.bybit.com"
	// 测试网 API 地址
	TestnetRestURL = "https://api-testnet.bybit.com"

	// 现货统一走 spot 品类
	categorySpot = "spot"
)

// Client Bybit v5 REST API 客户端
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	recvWindow string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient 创建 Bybit 客户端；recvWindowMs 是签名请求的默认接收窗口
func NewClient(apiKey, secretKey string, useTestnet bool, recvWindowMs int) *Client {
	baseURL := MainnetRestURL
	if useTestnet {
		baseURL = TestnetRestURL
	}
	if recvWindowMs <= 0 {
		recvWindowMs = 5000
	}

	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		recvWindow: strconv.Itoa(recvWindowMs),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// Bybit 默认限频 10 req/s，留出余量
		limiter: rate.NewLimiter(rate.Limit(8), 8),
	}
}

// sign 生成签名
func (c *Client) sign(params string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(params))
	return hex.EncodeToString(h.Sum(nil))
}

// request 发送 HTTP 请求；recvWindowMs <=0 时使用配置的默认接收窗口
func (c *Client) request(ctx context.Context, method, path string, params map[string]interface{}, recvWindowMs int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	recvWindow := c.recvWindow
	if recvWindowMs > 0 {
		recvWindow = strconv.Itoa(recvWindowMs)
	}

	var queryString string
	var bodyBytes []byte

	if method == http.MethodGet {
		// GET 请求：参数放在 URL 中
		values := url.Values{}
		for k, v := range params {
			values.Add(k, fmt.Sprintf("%v", v))
		}
		queryString = values.Encode()
	} else {
		// POST 请求：参数放在 body 中
		if params != nil {
			var err error
			bodyBytes, err = json.Marshal(params)
			if err != nil {
				return nil, fmt.Errorf("序列化请求体失败: %w", err)
			}
		}
	}

	// 签名串：timestamp + apiKey + recvWindow + (query | body)
	signStr := timestamp + c.apiKey + recvWindow
	if method == http.MethodGet && queryString != "" {
		signStr += queryString
	} else if len(bodyBytes) > 0 {
		signStr += string(bodyBytes)
	}

	signature := c.sign(signStr)

	fullURL := c.baseURL + path
	if queryString != "" {
		fullURL += "?" + queryString
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-SIGN", signature)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP 错误 %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		RetCode int             `json:"retCode"`
		RetMsg  string          `json:"retMsg"`
		Result  json.RawMessage `json:"result"`
	}

	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if apiResp.RetCode != 0 {
		return nil, fmt.Errorf("API 错误 %d: %s", apiResp.RetCode, apiResp.RetMsg)
	}

	return apiResp.Result, nil
}

// Instrument 交易对信息
type Instrument struct {
	Symbol        string        `json:"symbol"`
	BaseCoin      string        `json:"baseCoin"`
	QuoteCoin     string        `json:"quoteCoin"`
	Status        string        `json:"status"`
	PriceFilter   PriceFilter   `json:"priceFilter"`
	LotSizeFilter LotSizeFilter `json:"lotSizeFilter"`
}

type PriceFilter struct {
	TickSize string `json:"tickSize"`
}

type LotSizeFilter struct {
	BasePrecision  string `json:"basePrecision"`
	QuotePrecision string `json:"quotePrecision"`
	MinOrderQty    string `json:"minOrderQty"`
	MinOrderAmt    string `json:"minOrderAmt"`
	QtyStep        string `json:"qtyStep"`
}

// GetInstruments 获取交易对信息
func (c *Client) GetInstruments(ctx context.Context, symbol string) ([]Instrument, error) {
	params := map[string]interface{}{
		"category": categorySpot,
	}
	if symbol != "" {
		params["symbol"] = symbol
	}

	data, err := c.request(ctx, http.MethodGet, "/v5/market/instruments-info", params, 0)
	if err != nil {
		return nil, err
	}

	var result struct {
		List []Instrument `json:"list"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析交易对信息失败: %w", err)
	}

	return result.List, nil
}

// PlaceOrderResult 下单结果
type PlaceOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// PlaceOrder 下单
func (c *Client) PlaceOrder(ctx context.Context, params map[string]interface{}, recvWindowMs int) (*PlaceOrderResult, error) {
	data, err := c.request(ctx, http.MethodPost, "/v5/order/create", params, recvWindowMs)
	if err != nil {
		return nil, err
	}

	var result PlaceOrderResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析下单结果失败: %w", err)
	}

	return &result, nil
}

// CancelOrderResult 撤单结果
type CancelOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// CancelOrder 撤单
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) (*CancelOrderResult, error) {
	params := map[string]interface{}{
		"category": categorySpot,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	data, err := c.request(ctx, http.MethodPost, "/v5/order/cancel", params, 0)
	if err != nil {
		return nil, err
	}

	var result CancelOrderResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析撤单结果失败: %w", err)
	}

	return &result, nil
}

// Order 订单信息
type Order struct {
	OrderID      string `json:"orderId"`
	OrderLinkID  string `json:"orderLinkId"`
	Symbol       string `json:"symbol"`
	Side         string `json:"side"`
	OrderType    string `json:"orderType"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	CumExecQty   string `json:"cumExecQty"`
	LeavesQty    string `json:"leavesQty"`
	AvgPrice     string `json:"avgPrice"`
	OrderStatus  string `json:"orderStatus"`
	TimeInForce  string `json:"timeInForce"`
	TriggerPrice string `json:"triggerPrice"`
	CreatedTime  string `json:"createdTime"`
	UpdatedTime  string `json:"updatedTime"`
}

// GetOpenOrders 查询未完成订单
func (c *Client) GetOpenOrders(ctx context.Context, symbol string, recvWindowMs int) ([]Order, error) {
	params := map[string]interface{}{
		"category": categorySpot,
	}
	if symbol != "" {
		params["symbol"] = symbol
	}

	data, err := c.request(ctx, http.MethodGet, "/v5/order/realtime", params, recvWindowMs)
	if err != nil {
		return nil, err
	}

	var result struct {
		List []Order `json:"list"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析订单列表失败: %w", err)
	}

	return result.List, nil
}

// CoinBalance 币种余额
type CoinBalance struct {
	Coin          string `json:"coin"`
	WalletBalance string `json:"walletBalance"`
	Locked        string `json:"locked"`
}

// WalletBalance 账户余额
type WalletBalance struct {
	AccountType string        `json:"accountType"`
	Coins       []CoinBalance `json:"coin"`
}

// GetWalletBalance 获取账户余额
func (c *Client) GetWalletBalance(ctx context.Context, accountType string) ([]WalletBalance, error) {
	params := map[string]interface{}{
		"accountType": accountType,
	}

	data, err := c.request(ctx, http.MethodGet, "/v5/account/wallet-balance", params, 0)
	if err != nil {
		return nil, err
	}

	var result struct {
		List []WalletBalance `json:"list"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析余额信息失败: %w", err)
	}

	return result.List, nil
}

// FeeRate 手续费率
type FeeRate struct {
	Symbol       string `json:"symbol"`
	TakerFeeRate string `json:"takerFeeRate"`
	MakerFeeRate string `json:"makerFeeRate"`
}

// GetFeeRates 获取手续费率
func (c *Client) GetFeeRates(ctx context.Context, symbol string) ([]FeeRate, error) {
	params := map[string]interface{}{
		"category": categorySpot,
	}
	if symbol != "" {
		params["symbol"] = symbol
	}

	data, err := c.request(ctx, http.MethodGet, "/v5/account/fee-rate", params, 0)
	if err != nil {
		return nil, err
	}

	var result struct {
		List []FeeRate `json:"list"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析手续费率失败: %w", err)
	}

	return result.List, nil
}

// GetKlines 获取K线数据；返回 [start, open, high, low, close, volume, turnover]
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([][]string, error) {
	params := map[string]interface{}{
		"category": categorySpot,
		"symbol":   symbol,
		"interval": interval,
	}
	if startMs > 0 {
		params["start"] = startMs
	}
	if endMs > 0 {
		params["end"] = endMs
	}
	if limit > 0 {
		params["limit"] = limit
	}

	data, err := c.request(ctx, http.MethodGet, "/v5/market/kline", params, 0)
	if err != nil {
		return nil, err
	}

	var result struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析K线数据失败: %w", err)
	}

	return result.List, nil
}

// OrderBookResult 订单簿
type OrderBookResult struct {
	Symbol   string     `json:"s"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
	Time     int64      `json:"ts"`
	UpdateID int64      `json:"u"`
}

// GetOrderBook 获取订单簿
func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBookResult, error) {
	params := map[string]interface{}{
		"category": categorySpot,
		"symbol":   symbol,
	}
	if limit > 0 {
		params["limit"] = limit
	}

	data, err := c.request(ctx, http.MethodGet, "/v5/market/orderbook", params, 0)
	if err != nil {
		return nil, err
	}

	var result OrderBookResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析订单簿失败: %w", err)
	}

	return &result, nil
}

// RecentTrade 成交记录
type RecentTrade struct {
	ExecID string `json:"execId"`
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Size   string `json:"size"`
	Side   string `json:"side"`
	Time   string `json:"time"`
}

// GetRecentTrades 获取最近成交
func (c *Client) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]RecentTrade, error) {
	params := map[string]interface{}{
		"category": categorySpot,
		"symbol":   symbol,
	}
	if limit > 0 {
		params["limit"] = limit
	}

	data, err := c.request(ctx, http.MethodGet, "/v5/market/recent-trade", params, 0)
	if err != nil {
		return nil, err
	}

	var result struct {
		List []RecentTrade `json:"list"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析成交记录失败: %w", err)
	}

	return result.List, nil
}
