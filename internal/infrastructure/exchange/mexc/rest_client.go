package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/infrastructure/exchange"
)

// RESTClient MEXC 现货行情 REST 客户端
type RESTClient struct {
	baseURL    string
	tickerPath string
	client     *http.Client
}

// BookTickerResp 最优挂单响应
type BookTickerResp struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

// NewRESTClient 创建 MEXC REST 客户端
func NewRESTClient(baseURL, tickerPath string, timeout time.Duration) *RESTClient {
	if baseURL == "" {
		baseURL = "https://api.mexc.com"
	}
	if tickerPath == "" {
		tickerPath = "/api/v3/ticker/bookTicker"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		baseURL:    baseURL,
		tickerPath: tickerPath,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *RESTClient) Name() string { return "MEXC" }

// GetBookTickers 获取全部交易对的最优挂单
func (c *RESTClient) GetBookTickers(ctx context.Context) ([]BookTickerResp, error) {
	url, err := exchange.BuildQueryURL(c.baseURL, c.tickerPath, "")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("mexc api error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []BookTickerResp
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode book tickers: %w", err)
	}
	return results, nil
}

// FetchSymbols returns every listed symbol in response order.
func (c *RESTClient) FetchSymbols(ctx context.Context) ([]string, error) {
	tickers, err := c.GetBookTickers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if s := strings.TrimSpace(t.Symbol); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

var _ port.SymbolSource = (*RESTClient)(nil)
