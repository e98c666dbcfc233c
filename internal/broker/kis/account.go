package kis

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"jongga-bot/internal/types"
)

type balanceResp struct {
	envelope
	Output1 []struct {
		Symbol       string `json:"pdno"`
		Name         string `json:"prdt_name"`
		Qty          string `json:"hldg_qty"`
		OrderableQty string `json:"ord_psbl_qty"`
		AvgPrice     string `json:"pchs_avg_pric"`
		Price        string `json:"prpr"`
	} `json:"output1"`
	Output2 []struct {
		NetAsset   string `json:"nass_amt"`
		CashTotal  string `json:"dnca_tot_amt"`
		StockValue string `json:"tot_evlu_amt"`
	} `json:"output2"`
}

func (c *Client) fetchBalance(ctx context.Context) (*balanceResp, error) {
	cano, prdt := c.cano()
	params := url.Values{}
	params.Set("CANO", cano)
	params.Set("ACNT_PRDT_CD", prdt)
	params.Set("AFHR_FLPR_YN", "N")
	params.Set("OFL_YN", "N")
	params.Set("INQR_DVSN", "02")
	params.Set("UNPR_DVSN", "01")
	params.Set("FUND_STTL_ICLD_YN", "N")
	params.Set("FNCG_AMT_AUTO_RDPT_YN", "N")
	params.Set("PRCS_DVSN", "00")
	params.Set("CTX_AREA_FK100", "")
	params.Set("CTX_AREA_NK100", "")

	var resp balanceResp
	if err := c.getJSON(ctx, c.tradeLimiter, c.tradeBaseURL(), "/uapi/domestic-stock/v1/trading/inquire-balance", c.tr.balance, params, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("inquire-balance: %s", resp.Msg1)
	}
	return &resp, nil
}

// FetchEquity returns the account's net asset value. Falls back to
// cash + stock valuation when the venue omits the net-asset field.
func (c *Client) FetchEquity(ctx context.Context) (int64, error) {
	resp, err := c.fetchBalance(ctx)
	if err != nil {
		return 0, err
	}
	if len(resp.Output2) == 0 {
		return 0, nil
	}
	sum := resp.Output2[0]
	if nass := safeInt(sum.NetAsset); nass > 0 {
		return nass, nil
	}
	return safeInt(sum.CashTotal) + safeInt(sum.StockValue), nil
}

// FetchHoldings returns the broker's authoritative holdings keyed by symbol.
// Zero-quantity rows (fully sold today) are dropped.
func (c *Client) FetchHoldings(ctx context.Context) (map[string]types.Holding, error) {
	resp, err := c.fetchBalance(ctx)
	if err != nil {
		return nil, err
	}
	holdings := make(map[string]types.Holding, len(resp.Output1))
	for _, row := range resp.Output1 {
		qty := safeInt(row.Qty)
		if qty <= 0 {
			continue
		}
		holdings[row.Symbol] = types.Holding{
			Symbol:       row.Symbol,
			Name:         row.Name,
			Qty:          qty,
			OrderableQty: safeInt(row.OrderableQty),
			AvgPrice:     safeFloat(row.AvgPrice),
			Price:        safeInt(row.Price),
		}
	}
	return holdings, nil
}

type hashkeyResp struct {
	Hash string `json:"HASH"`
}

// fetchHashkey signs an order body. Required on the production host only.
func (c *Client) fetchHashkey(ctx context.Context, body any) (string, error) {
	var resp hashkeyResp
	if err := c.postJSON(ctx, c.dataLimiter, urlReal, "/uapi/hashkey", "", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.Hash == "" {
		return "", fmt.Errorf("empty hashkey")
	}
	return resp.Hash, nil
}

type orderResp struct {
	envelope
	Output struct {
		OrderNo string `json:"ODNO"`
	} `json:"output"`
}

// SubmitOrder places a cash order. Price zero submits at market, otherwise a
// limit order at the given price. In DryRun mode the order is acknowledged
// locally without touching the venue.
func (c *Client) SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if c.p.DryRun {
		return types.OrderResp{
			OrderID:  fmt.Sprintf("SIM-%d", time.Now().UnixNano()),
			Accepted: true,
			Message:  "dry-run",
		}, nil
	}

	trID := c.tr.buy
	if req.Side == types.SideSell {
		trID = c.tr.sell
	}
	ordDvsn, ordUnpr := "01", "0" // market
	if req.Price > 0 {
		ordDvsn, ordUnpr = "00", fmt.Sprintf("%d", req.Price) // limit
	}

	cano, prdt := c.cano()
	body := map[string]string{
		"CANO":         cano,
		"ACNT_PRDT_CD": prdt,
		"PDNO":         req.Symbol,
		"ORD_DVSN":     ordDvsn,
		"ORD_QTY":      fmt.Sprintf("%d", req.Qty),
		"ORD_UNPR":     ordUnpr,
	}

	extra := map[string]string{}
	if c.p.Mode == "REAL" {
		hash, err := c.fetchHashkey(ctx, body)
		if err != nil {
			return types.OrderResp{}, fmt.Errorf("hashkey: %w", err)
		}
		extra["hashkey"] = hash
	}

	var resp orderResp
	if err := c.postJSON(ctx, c.tradeLimiter, c.tradeBaseURL(), "/uapi/domestic-stock/v1/trading/order-cash", trID, extra, body, &resp); err != nil {
		return types.OrderResp{}, err
	}
	return types.OrderResp{
		OrderID:  resp.Output.OrderNo,
		Accepted: resp.ok(),
		Message:  resp.Msg1,
	}, nil
}
