package kis

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"jongga-bot/internal/types"
)

// Market-data calls always target the production host regardless of Mode;
// the mock environment serves no quote data.

type holidayResp struct {
	envelope
	Output []struct {
		BassDt string `json:"bass_dt"`
		OpndYn string `json:"opnd_yn"`
	} `json:"output"`
}

// CheckHoliday reports whether the market is closed on the given date.
func (c *Client) CheckHoliday(ctx context.Context, date time.Time) (bool, error) {
	dateStr := date.Format("20060102")
	params := url.Values{}
	params.Set("BASS_DT", dateStr)
	params.Set("CTX_AREA_NK", "")
	params.Set("CTX_AREA_FK", "")

	var resp holidayResp
	if err := c.getJSON(ctx, c.dataLimiter, urlReal, "/uapi/domestic-stock/v1/quotations/chk-holiday", "CTCA0903R", params, &resp); err != nil {
		return false, err
	}
	if !resp.ok() {
		return false, fmt.Errorf("chk-holiday: %s", resp.Msg1)
	}
	for _, day := range resp.Output {
		if day.BassDt == dateStr {
			return day.OpndYn == "N", nil
		}
	}
	return false, nil
}

type psearchTitleResp struct {
	envelope
	Output2 []struct {
		Seq   string `json:"seq"`
		GrpNm string `json:"grp_nm"`
	} `json:"output2"`
}

// conditionSeqFor resolves a condition-search name to its server-side seq,
// caching the mapping for the lifetime of the client.
func (c *Client) conditionSeqFor(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	seq, hit := c.conditionSeq[name]
	c.mu.Unlock()
	if hit {
		return seq, nil
	}

	params := url.Values{}
	params.Set("user_id", c.p.HTSID)
	var resp psearchTitleResp
	if err := c.getJSON(ctx, c.dataLimiter, urlReal, "/uapi/domestic-stock/v1/quotations/psearch-title", "HHKST03900300", params, &resp); err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", fmt.Errorf("psearch-title: %s", resp.Msg1)
	}
	for _, item := range resp.Output2 {
		if item.GrpNm == name {
			c.mu.Lock()
			c.conditionSeq[name] = item.Seq
			c.mu.Unlock()
			return item.Seq, nil
		}
	}
	return "", fmt.Errorf("condition search %q not found for user %s", name, c.p.HTSID)
}

type psearchResultResp struct {
	envelope
	Output2 []struct {
		Code     string `json:"code"`
		Name     string `json:"name"`
		ChgRate  string `json:"chgrate"`
		Price    string `json:"price"`
		AcmlVol  string `json:"acml_vol"`
	} `json:"output2"`
}

// FetchConditionCandidates runs the named server-side condition search and
// returns its current hits. An empty hit list is a normal result.
func (c *Client) FetchConditionCandidates(ctx context.Context, name string) ([]types.RawCandidate, error) {
	seq, err := c.conditionSeqFor(ctx, name)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("user_id", c.p.HTSID)
	params.Set("seq", seq)
	var resp psearchResultResp
	if err := c.getJSON(ctx, c.dataLimiter, urlReal, "/uapi/domestic-stock/v1/quotations/psearch-result", "HHKST03900400", params, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("psearch-result %q: %s", name, resp.Msg1)
	}

	out := make([]types.RawCandidate, 0, len(resp.Output2))
	for _, item := range resp.Output2 {
		out = append(out, types.RawCandidate{
			Symbol: item.Code,
			Name:   item.Name,
			Price:  safeInt(item.Price),
			Rate:   safeFloat(item.ChgRate),
			Volume: safeInt(item.AcmlVol),
		})
	}
	return out, nil
}

type inquirePriceResp struct {
	envelope
	Output struct {
		Name        string `json:"hts_kor_isnm"`
		Price       string `json:"stck_prpr"`
		Open        string `json:"stck_oprc"`
		High        string `json:"stck_hgpr"`
		Low         string `json:"stck_lwpr"`
		UpperLimit  string `json:"stck_mxpr"`
		DayRate     string `json:"prdy_ctrt"`
		ProgramBuy  string `json:"pgtr_ntby_qty"`
		AccumVolume string `json:"acml_vol"`
	} `json:"output"`
}

type askingPriceResp struct {
	envelope
	Output1 struct {
		Askp1 string `json:"askp1"`
	} `json:"output1"`
}

// FetchPriceDetail returns the current quote plus the best ask for a symbol.
// Two venue calls; the asking-price failure degrades to BestAsk=Price rather
// than losing the whole quote.
func (c *Client) FetchPriceDetail(ctx context.Context, symbol string) (*types.PriceDetail, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)

	var priceResp inquirePriceResp
	if err := c.getJSON(ctx, c.dataLimiter, urlReal, "/uapi/domestic-stock/v1/quotations/inquire-price", "FHKST01010100", params, &priceResp); err != nil {
		return nil, err
	}
	if !priceResp.ok() {
		return nil, fmt.Errorf("inquire-price %s: %s", symbol, priceResp.Msg1)
	}

	out := priceResp.Output
	detail := &types.PriceDetail{
		Symbol:        symbol,
		Name:          out.Name,
		Price:         safeInt(out.Price),
		Open:          safeInt(out.Open),
		High:          safeInt(out.High),
		Low:           safeInt(out.Low),
		UpperLimit:    safeInt(out.UpperLimit),
		AccumVolume:   safeInt(out.AccumVolume),
		ProgramNetBuy: safeInt(out.ProgramBuy),
		DayRate:       safeFloat(out.DayRate),
	}
	detail.BestAsk = detail.Price

	var askResp askingPriceResp
	if err := c.getJSON(ctx, c.dataLimiter, urlReal, "/uapi/domestic-stock/v1/quotations/inquire-asking-price-exp-ccn", "FHKST01010200", params, &askResp); err == nil && askResp.ok() {
		if ask := safeInt(askResp.Output1.Askp1); ask > 0 {
			detail.BestAsk = ask
		}
	}
	return detail, nil
}
