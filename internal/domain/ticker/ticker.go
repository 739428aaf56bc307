// Package ticker defines the exchange ticker symbol value type.
package ticker

import (
	"fmt"
	"regexp"
	"strings"
)

// NoneLiteral is what the extraction model answers when the text names no public company.
const NoneLiteral = "NONE"

// Pattern is the accepted ticker shape.
const Pattern = `^[A-Z]{1,5}$`

var symbolRe = regexp.MustCompile(Pattern)

// Symbol is an upper-case exchange ticker of 1 to 5 letters.
type Symbol string

// None is the unresolved sentinel.
const None Symbol = ""

// Parse validates raw and returns a Symbol. Surrounding whitespace is ignored,
// case is not: "aapl" is rejected.
func Parse(raw string) (Symbol, error) {
	s := strings.TrimSpace(raw)
	if !symbolRe.MatchString(s) {
		return None, fmt.Errorf("invalid ticker %q", raw)
	}
	return Symbol(s), nil
}

// String returns the symbol text.
func (s Symbol) String() string { return string(s) }

// CompanyAlias maps a lower-case company name fragment to its ticker.
type CompanyAlias struct {
	Name   string
	Ticker Symbol
}

// DefaultAliases is the built-in static mapping, checked in order.
func DefaultAliases() []CompanyAlias {
	return []CompanyAlias{
		{Name: "apple", Ticker: "AAPL"},
		{Name: "microsoft", Ticker: "MSFT"},
		{Name: "google", Ticker: "GOOGL"},
		{Name: "alphabet", Ticker: "GOOGL"},
		{Name: "amazon", Ticker: "AMZN"},
		{Name: "tesla", Ticker: "TSLA"},
		{Name: "meta", Ticker: "META"},
		{Name: "facebook", Ticker: "META"},
		{Name: "netflix", Ticker: "NFLX"},
		{Name: "nvidia", Ticker: "NVDA"},
	}
}
