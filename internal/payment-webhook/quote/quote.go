package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

var ErrUnsupportedAsset = errors.New("unsupported asset")

// PriceQuote devolve o preço em dólar de uma unidade do ativo
type PriceQuote interface {
	Price(ctx context.Context, asset string) (decimal.Decimal, error)
}

// ids da CoinGecko por símbolo
var coinGeckoIDs = map[string]string{
	"ETH":   "ethereum",
	"BTC":   "bitcoin",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"MATIC": "matic-network",
	"SOL":   "solana",
}

// CoinGecko consulta /simple/price e mantém o resultado em cache local
type CoinGecko struct {
	BaseURL string
	HTTP    *http.Client
	cache   *gocache.Cache
}

func NewCoinGecko(base string, ttl time.Duration) *CoinGecko {
	return &CoinGecko{
		BaseURL: strings.TrimSuffix(base, "/"),
		HTTP:    &http.Client{Timeout: 3 * time.Second},
		cache:   gocache.New(ttl, 2*ttl),
	}
}

func (c *CoinGecko) Price(ctx context.Context, asset string) (decimal.Decimal, error) {
	asset = strings.ToUpper(asset)
	id, ok := coinGeckoIDs[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	if v, found := c.cache.Get(asset); found {
		return v.(decimal.Decimal), nil
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/simple/price?"+q.Encode(), nil)
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("price api http %d", res.StatusCode)
	}

	// {"ethereum":{"usd":3012.55}}
	var body map[string]map[string]json.Number
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode price: %w", err)
	}
	raw, ok := body[id]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("price for %s missing in response", asset)
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid price %q for %s", raw, asset)
	}

	c.cache.SetDefault(asset, price)
	return price, nil
}

// Static devolve preços fixos; usado no modo local e em testes
type Static map[string]decimal.Decimal

func (s Static) Price(_ context.Context, asset string) (decimal.Decimal, error) {
	p, ok := s[strings.ToUpper(asset)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	return p, nil
}
