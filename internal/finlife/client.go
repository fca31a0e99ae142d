// Package finlife fetches product disclosures from the FSS finlife API and
// stores them in the catalog.
package finlife

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/pkg/httpclient"
	"github.com/finmate/finmate/pkg/models"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var endpoints = map[string]string{
	models.KindDeposit:  "depositProductsSearch.json",
	models.KindSaving:   "savingProductsSearch.json",
	models.KindMortgage: "mortgageLoanProductsSearch.json",
	models.KindCredit:   "creditLoanProductsSearch.json",
	models.KindRent:     "rentHouseLoanProductsSearch.json",
}

// Number is a numeric field that the API sends as a number, a numeric
// string, an empty string or null.
type Number struct {
	Value *float64
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		n.Value = nil
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	return n.parse(raw)
}

// UnmarshalYAML implements yaml.Unmarshaler
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		n.Value = nil
		return nil
	}
	return n.parse(node.Value)
}

func (n *Number) parse(raw string) error {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" || raw == "-" {
		n.Value = nil
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", raw, err)
	}
	n.Value = &v
	return nil
}

// Float returns the value or 0
func (n Number) Float() float64 {
	if n.Value == nil {
		return 0
	}
	return *n.Value
}

// Int returns the value truncated to an int, or 0
func (n Number) Int() int {
	return int(n.Float())
}

// Ptr returns a copy of the value, nil when absent
func (n Number) Ptr() *float64 {
	if n.Value == nil {
		return nil
	}
	v := *n.Value
	return &v
}

// BaseItem is one entry of baseList
type BaseItem struct {
	DclsMonth    string  `json:"dcls_month" yaml:"dcls_month"`
	FinCoNo      string  `json:"fin_co_no" yaml:"fin_co_no"`
	KorCoNm      string  `json:"kor_co_nm" yaml:"kor_co_nm"`
	FinPrdtCd    string  `json:"fin_prdt_cd" yaml:"fin_prdt_cd"`
	FinPrdtNm    string  `json:"fin_prdt_nm" yaml:"fin_prdt_nm"`
	JoinWay      string  `json:"join_way" yaml:"join_way"`
	JoinMember   *string `json:"join_member" yaml:"join_member"`
	LoanInciExpn *string `json:"loan_inci_expn" yaml:"loan_inci_expn"`
	ErlyRpayFee  *string `json:"erly_rpay_fee" yaml:"erly_rpay_fee"`
	DlyRate      *string `json:"dly_rate" yaml:"dly_rate"`
	LoanLmt      *string `json:"loan_lmt" yaml:"loan_lmt"`
}

// OptionItem is one entry of optionList. Which fields are set depends on
// the product kind.
type OptionItem struct {
	FinPrdtCd string `json:"fin_prdt_cd" yaml:"fin_prdt_cd"`

	IntrRateType string `json:"intr_rate_type" yaml:"intr_rate_type"`
	RsrvType     string `json:"rsrv_type" yaml:"rsrv_type"`
	SaveTrm      Number `json:"save_trm" yaml:"save_trm"`
	IntrRate     Number `json:"intr_rate" yaml:"intr_rate"`
	IntrRate2    Number `json:"intr_rate2" yaml:"intr_rate2"`

	MrtgType     string `json:"mrtg_type" yaml:"mrtg_type"`
	RpayType     string `json:"rpay_type" yaml:"rpay_type"`
	LendRateType string `json:"lend_rate_type" yaml:"lend_rate_type"`
	LendRateMin  Number `json:"lend_rate_min" yaml:"lend_rate_min"`
	LendRateMax  Number `json:"lend_rate_max" yaml:"lend_rate_max"`
	LendRateAvg  Number `json:"lend_rate_avg" yaml:"lend_rate_avg"`

	CrdtPrdtType     string `json:"crdt_prdt_type" yaml:"crdt_prdt_type"`
	CrdtLendRateType string `json:"crdt_lend_rate_type" yaml:"crdt_lend_rate_type"`
	CrdtGrad1        Number `json:"crdt_grad_1" yaml:"crdt_grad_1"`
	CrdtGrad4        Number `json:"crdt_grad_4" yaml:"crdt_grad_4"`
	CrdtGrad5        Number `json:"crdt_grad_5" yaml:"crdt_grad_5"`
	CrdtGrad6        Number `json:"crdt_grad_6" yaml:"crdt_grad_6"`
	CrdtGrad10       Number `json:"crdt_grad_10" yaml:"crdt_grad_10"`
	CrdtGrad11       Number `json:"crdt_grad_11" yaml:"crdt_grad_11"`
	CrdtGrad12       Number `json:"crdt_grad_12" yaml:"crdt_grad_12"`
	CrdtGrad13       Number `json:"crdt_grad_13" yaml:"crdt_grad_13"`
	CrdtGradAvg      Number `json:"crdt_grad_avg" yaml:"crdt_grad_avg"`
}

// Page is the result of one API call
type Page struct {
	ErrCd      string       `json:"err_cd"`
	ErrMsg     string       `json:"err_msg"`
	TotalCount Number       `json:"total_count"`
	MaxPageNo  Number       `json:"max_page_no"`
	NowPageNo  Number       `json:"now_page_no"`
	BaseList   []BaseItem   `json:"baseList"`
	OptionList []OptionItem `json:"optionList"`
}

// Batch is everything fetched for one product kind
type Batch struct {
	Base    []BaseItem   `yaml:"baseList"`
	Options []OptionItem `yaml:"optionList"`
}

// Fetcher retrieves every disclosure of a product kind
type Fetcher interface {
	FetchAll(ctx context.Context, kind string) (*Batch, error)
}

// Client calls the finlife API
type Client struct {
	logger       *zap.Logger
	http         *retryablehttp.Client
	baseURL      string
	apiKey       string
	savingGroups []string
	loanGroups   []string
	maxPages     int
}

// NewClient creates a finlife API client
func NewClient(logger *zap.Logger, cfg config.FinlifeConfig) *Client {
	savingGroups := cfg.SavingGroups
	if len(savingGroups) == 0 {
		savingGroups = []string{"020000"}
	}
	loanGroups := cfg.LoanGroups
	if len(loanGroups) == 0 {
		loanGroups = []string{"050000"}
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 20
	}
	return &Client{
		logger: logger,
		http: httpclient.New(logger, httpclient.Options{
			Timeout:      cfg.Timeout,
			RetryMax:     cfg.RetryMax,
			RetryWaitMin: cfg.RetryWaitMin,
			RetryWaitMax: cfg.RetryWaitMax,
		}),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		savingGroups: savingGroups,
		loanGroups:   loanGroups,
		maxPages:     maxPages,
	}
}

// FetchAll walks every page of every configured financial group
func (c *Client) FetchAll(ctx context.Context, kind string) (*Batch, error) {
	groups := c.loanGroups
	if kind == models.KindDeposit || kind == models.KindSaving {
		groups = c.savingGroups
	}

	batch := &Batch{}
	for _, group := range groups {
		for pageNo := 1; pageNo <= c.maxPages; pageNo++ {
			page, err := c.FetchPage(ctx, kind, group, pageNo)
			if err != nil {
				return nil, err
			}
			batch.Base = append(batch.Base, page.BaseList...)
			batch.Options = append(batch.Options, page.OptionList...)
			if pageNo >= page.MaxPageNo.Int() {
				break
			}
		}
	}
	return batch, nil
}

// FetchPage requests a single page
func (c *Client) FetchPage(ctx context.Context, kind, group string, pageNo int) (page *Page, err error) {
	endpoint, ok := endpoints[kind]
	if !ok {
		return nil, fmt.Errorf("unknown product kind %q", kind)
	}

	params := url.Values{}
	params.Set("auth", c.apiKey)
	params.Set("topFinGrpNo", group)
	params.Set("pageNo", strconv.Itoa(pageNo))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	defer func() { httpclient.Observe("finlife", start, err) }()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finlife request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("finlife returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Result *Page `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode finlife response: %w", err)
	}
	if envelope.Result == nil {
		return nil, fmt.Errorf("finlife response has no result")
	}
	if envelope.Result.ErrCd != "000" {
		return nil, fmt.Errorf("finlife error %s: %s", envelope.Result.ErrCd, envelope.Result.ErrMsg)
	}

	c.logger.Debug("Fetched finlife page",
		zap.String("kind", kind),
		zap.String("group", group),
		zap.Int("page", pageNo),
		zap.Int("base", len(envelope.Result.BaseList)),
		zap.Int("options", len(envelope.Result.OptionList)))
	return envelope.Result, nil
}
