// Package analysis defines the structured outputs of the three analysis
// streams and the final recommendation that aggregates them.
package analysis

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kailas-cloud/finsight/internal/domain/ticker"
)

// Fundamental is the long-horizon assessment built from annual filings.
type Fundamental struct {
	InvestmentThesis string   `json:"overall_investment_thesis" description:"2-3 sentence investment thesis" validate:"required"`
	InvestmentGrade  string   `json:"investment_grade" enum:"A,B,C,D" validate:"oneof=A B C D"`
	ConfidenceScore  float64  `json:"confidence_score" description:"confidence from 0.0 to 1.0" validate:"gte=0,lte=1"`
	KeyStrengths     []string `json:"key_strengths" description:"exactly 3 strengths" validate:"len=3,dive,required"`
	KeyConcerns      []string `json:"key_concerns" description:"exactly 3 concerns" validate:"len=3,dive,required"`
	Recommendation   string   `json:"recommendation" enum:"buy,hold,sell,avoid" validate:"oneof=buy hold sell avoid"`
}

// Momentum is the near-term trajectory built from quarterly filings.
type Momentum struct {
	OverallMomentum    string   `json:"overall_momentum" enum:"positive,neutral,negative" validate:"oneof=positive neutral negative"`
	MomentumStrength   string   `json:"momentum_strength" enum:"strong,moderate,weak" validate:"oneof=strong moderate weak"`
	KeyMomentumDrivers []string `json:"key_momentum_drivers" description:"2 to 3 drivers" validate:"min=2,max=3,dive,required"`
	MomentumRisks      []string `json:"momentum_risks" description:"2 to 3 risks" validate:"min=2,max=3,dive,required"`
	ShortTermOutlook   string   `json:"short_term_outlook" enum:"bullish,neutral,bearish" validate:"oneof=bullish neutral bearish"`
	MomentumScore      float64  `json:"momentum_score" description:"score from 0 to 10" validate:"gte=0,lte=10"`
}

// Sentiment is the market perception built from news coverage.
type Sentiment struct {
	SentimentScore     float64  `json:"sentiment_score" description:"1 very negative, 10 very positive" validate:"gte=1,lte=10"`
	SentimentDirection string   `json:"sentiment_direction" enum:"Positive,Neutral,Negative" validate:"oneof=Positive Neutral Negative"`
	KeyNewsThemes      []string `json:"key_news_themes" validate:"required,dive,required"`
	RecentCatalysts    []string `json:"recent_catalysts" validate:"required,dive,required"`
	MarketOutlook      string   `json:"market_outlook" validate:"required"`
}

// Recommendation is the aggregated investment call.
type Recommendation struct {
	Action           string   `json:"action" enum:"BUY,HOLD,SELL" validate:"oneof=BUY HOLD SELL"`
	Confidence       float64  `json:"confidence" description:"confidence from 0.0 to 1.0" validate:"gte=0,lte=1"`
	Rationale        string   `json:"rationale" validate:"required"`
	KeyRisks         []string `json:"key_risks" validate:"required,dive,required"`
	KeyOpportunities []string `json:"key_opportunities" validate:"required,dive,required"`
	TimeHorizon      string   `json:"time_horizon" enum:"Short-term,Medium-term,Long-term" validate:"oneof=Short-term Medium-term Long-term"`
}

// Bundle is the full answer to one analysis request.
type Bundle struct {
	ID                  uuid.UUID      `json:"id"`
	Query               string         `json:"query"`
	Ticker              ticker.Symbol  `json:"ticker"`
	Fundamental         Fundamental    `json:"fundamental_analysis"`
	Momentum            Momentum       `json:"momentum_analysis"`
	Sentiment           Sentiment      `json:"sentiment_analysis"`
	FinalRecommendation Recommendation `json:"final_recommendation"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks v against its validate tags.
func Validate(v any) error {
	if err := structValidator().Struct(v); err != nil {
		return fmt.Errorf("validate %T: %w", v, err)
	}
	return nil
}

// Canonical renders v as 2-space indented JSON with fields in declaration order.
func Canonical(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("canonical %T: %w", v, err)
	}
	return string(b), nil
}
