// Package ticker resolves free-form user text to an exchange ticker symbol.
package ticker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/ticker"
	"github.com/kailas-cloud/finsight/internal/logger"
	"github.com/kailas-cloud/finsight/internal/usecase/completion"
)

const extractionSchema = "ticker_extraction"

const extractionPrompt = `You are a stock ticker extractor. Given a user message about a company or stock, return ONLY the stock ticker symbol.

Rules:
- Return only the ticker symbol, nothing else
- If no company is mentioned, return "NONE"
- If multiple companies are mentioned, return the first or main one
- Use US stock exchanges (NYSE, NASDAQ)

Examples:
- "How is Disney doing?" -> DIS
- "Tesla stock analysis" -> TSLA
- "What about IBM?" -> IBM
- "What's the weather like?" -> NONE

User message: %s
Response:`

type extraction struct {
	Ticker string `json:"ticker" description:"1 to 5 upper-case letters, or NONE"`
}

// Resolver maps text to a ticker: ordered static aliases first, then one
// extraction call to the completion provider.
type Resolver struct {
	aliases   []ticker.CompanyAlias
	completer domain.Completer
}

// NewResolver creates a resolver. Alias names are matched case-insensitively
// as substrings, in slice order.
func NewResolver(aliases []ticker.CompanyAlias, c domain.Completer) *Resolver {
	own := make([]ticker.CompanyAlias, len(aliases))
	for i, a := range aliases {
		own[i] = ticker.CompanyAlias{Name: strings.ToLower(a.Name), Ticker: a.Ticker}
	}
	return &Resolver{aliases: own, completer: c}
}

// Resolve returns the ticker named in text or domain.ErrTickerNotFound.
func (r *Resolver) Resolve(ctx context.Context, text string) (ticker.Symbol, error) {
	log := logger.FromContext(ctx)

	if sym, ok := r.lookup(text); ok {
		log.Debug("Ticker resolved from static mapping", zap.String("ticker", sym.String()))
		return sym, nil
	}

	out, err := completion.Structured[extraction](ctx, r.completer, extractionSchema,
		fmt.Sprintf(extractionPrompt, text))
	if err != nil {
		return ticker.None, fmt.Errorf("%w: %w", domain.ErrResolution, err)
	}

	raw := strings.TrimSpace(out.Ticker)
	if raw == "" || strings.EqualFold(raw, ticker.NoneLiteral) {
		return ticker.None, domain.ErrTickerNotFound
	}
	sym, err := ticker.Parse(raw)
	if err != nil {
		return ticker.None, fmt.Errorf("%w: %w", domain.ErrResolution, err)
	}

	log.Debug("Ticker resolved by extraction", zap.String("ticker", sym.String()))
	return sym, nil
}

func (r *Resolver) lookup(text string) (ticker.Symbol, bool) {
	lower := strings.ToLower(text)
	for _, a := range r.aliases {
		if a.Name != "" && strings.Contains(lower, a.Name) {
			return a.Ticker, true
		}
	}
	return ticker.None, false
}
