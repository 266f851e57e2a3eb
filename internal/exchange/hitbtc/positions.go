package hitbtc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

const (
	balancePath = "/api/1/trading/balance"

	// balancePollInterval matches the venue's guidance for balance polling.
	balancePollInterval = 15 * time.Second

	positionBuffer = 16
)

// PositionGateway polls the signed trading balance endpoint and emits a
// CurrencyPosition per tracked currency.
type PositionGateway struct {
	pullURL string
	signer  *signer
	logger  *slog.Logger
	httpc   *http.Client

	out chan domain.CurrencyPosition
}

func NewPositionGateway(pullURL, apiKey, secret string, logger *slog.Logger) *PositionGateway {
	return &PositionGateway{
		pullURL: pullURL,
		signer:  newSigner(apiKey, secret),
		logger:  logger.With(slog.String("component", "hitbtc_pg")),
		httpc:   &http.Client{Timeout: 10 * time.Second},
		out:     make(chan domain.CurrencyPosition, positionBuffer),
	}
}

// Updates is the stream of balance updates.
func (g *PositionGateway) Updates() <-chan domain.CurrencyPosition {
	return g.out
}

// Run polls balances until ctx is cancelled. The first poll happens
// immediately.
func (g *PositionGateway) Run(ctx context.Context) error {
	ticker := time.NewTicker(balancePollInterval)
	defer ticker.Stop()

	g.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.poll(ctx)
		}
	}
}

func (g *PositionGateway) poll(ctx context.Context) {
	reports, err := g.fetchBalances(ctx)
	if err != nil {
		g.logger.Warn("balance poll failed", slog.String("error", err.Error()))
		return
	}

	for _, r := range reports {
		currency, ok := translateCurrency(r.CurrencyCode)
		if !ok {
			continue
		}
		pos := domain.CurrencyPosition{
			Currency: currency,
			Amount:   r.Cash,
			Exchange: domain.ExchangeHitBtc,
		}
		select {
		case g.out <- pos:
		case <-ctx.Done():
			return
		}
	}
}

func (g *PositionGateway) fetchBalances(ctx context.Context) ([]balanceReport, error) {
	query, signature := g.signer.signQuery(balancePath, restNonce())
	endpoint := g.pullURL + balancePath + "?" + query

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("hitbtc/pg: build request: %w", err)
	}
	req.Header.Set("X-Signature", signature)

	resp, err := g.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hitbtc/pg: fetch balances: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hitbtc/pg: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hitbtc/pg: balance request returned %d: %s", resp.StatusCode, body)
	}

	var parsed balanceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("hitbtc/pg: decode balances: %w", err)
	}
	return parsed.Balance, nil
}
