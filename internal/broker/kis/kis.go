// Package kis is a thin client for the KIS domestic-stock OpenAPI. It covers
// only the calls the trading engine consumes: condition search, quotes,
// balance, holdings, holiday calendar and cash orders. Authentication tokens
// are issued out of band and injected via Params.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jongga-bot/internal/interfaces"
)

const (
	urlReal = "https://openapi.koreainvestment.com:9443"
	urlMock = "https://openapivts.koreainvestment.com:29443"

	// The venue allows ~20 req/s per app key; stay under it. The mock
	// environment throttles trading calls much harder.
	dataRatePerSec      = 15
	tradeRatePerSecReal = 15
	tradeRatePerSecMock = 2
)

type trIDs struct {
	balance string
	buy     string
	sell    string
}

type Params struct {
	Mode        string // REAL or MOCK
	DryRun      bool   // simulate order acceptance without hitting the venue
	AppKey      string
	AppSecret   string
	AccessToken string
	AccountNo   string // 10 digits: 8-digit account + 2-digit product code
	HTSID       string // owner id of the server-side condition searches
}

// Client talks to the KIS REST API. Quote/calendar traffic always goes to the
// production host; trading traffic follows Mode.
type Client struct {
	p            Params
	http         *http.Client
	tr           trIDs
	dataLimiter  *rate.Limiter
	tradeLimiter *rate.Limiter

	mu           sync.Mutex
	conditionSeq map[string]string // condition name -> server-side seq
}

var _ interfaces.Broker = (*Client)(nil)

func NewClient(p Params) *Client {
	tr := trIDs{balance: "TTTC8434R", buy: "TTTC0802U", sell: "TTTC0801U"}
	tradeRate := rate.Limit(tradeRatePerSecReal)
	if p.Mode == "MOCK" {
		tr = trIDs{balance: "VTTC8434R", buy: "VTTC0802U", sell: "VTTC0801U"}
		tradeRate = rate.Limit(tradeRatePerSecMock)
	}
	return &Client{
		p:            p,
		http:         &http.Client{Timeout: 10 * time.Second},
		tr:           tr,
		dataLimiter:  rate.NewLimiter(rate.Limit(dataRatePerSec), 1),
		tradeLimiter: rate.NewLimiter(tradeRate, 1),
		conditionSeq: make(map[string]string),
	}
}

func (c *Client) tradeBaseURL() string {
	if c.p.Mode == "MOCK" {
		return urlMock
	}
	return urlReal
}

func (c *Client) headers(trID string) http.Header {
	h := http.Header{}
	h.Set("content-type", "application/json; charset=utf-8")
	h.Set("appkey", c.p.AppKey)
	h.Set("appsecret", c.p.AppSecret)
	h.Set("authorization", "Bearer "+c.p.AccessToken)
	h.Set("custtype", "P")
	h.Set("tr_id", trID)
	return h
}

// envelope is the common KIS response wrapper. rt_cd "0" means success;
// anything else is a business-level rejection with msg1 as the reason.
type envelope struct {
	RtCd string `json:"rt_cd"`
	Msg1 string `json:"msg1"`
}

func (e envelope) ok() bool { return e.RtCd == "0" }

func (c *Client) getJSON(ctx context.Context, limiter *rate.Limiter, base, path, trID string, params url.Values, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	u := base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header = c.headers(trID)
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, limiter *rate.Limiter, base, path, trID string, extraHeaders map[string]string, body, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header = c.headers(trID)
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// safeInt parses KIS numeric strings, which arrive comma-grouped and
// occasionally empty.
func safeInt(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func safeFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func (c *Client) cano() (string, string) {
	no := c.p.AccountNo
	if len(no) < 10 {
		return no, ""
	}
	return no[:8], no[8:]
}
