package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/observability"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// Classifier maps a free-text issue description to a classification.
type Classifier interface {
	Classify(ctx context.Context, description string) (domain.Classification, error)
}

// GeminiClassifier calls the Gemini generateContent API and degrades to the
// deterministic keyword classifier on any failure: missing credentials,
// transport errors, timeouts, or malformed responses. Classification never
// fails for a non-empty description.
type GeminiClassifier struct {
	cfg     config.ClassifierConfig
	client  *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewGeminiClassifier constructs the classifier with a bounded call timeout.
func NewGeminiClassifier(cfg config.ClassifierConfig, logger *zap.Logger, metrics *observability.Metrics) *GeminiClassifier {
	return &GeminiClassifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout()},
		logger:  logger,
		metrics: metrics,
	}
}

// Classify returns the model classification or the keyword fallback.
func (c *GeminiClassifier) Classify(ctx context.Context, description string) (domain.Classification, error) {
	if strings.TrimSpace(description) == "" {
		return domain.Classification{}, apperrors.NewValidationError("description required", nil)
	}

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.logger.Debug("no classifier api key; using keyword classification")
		c.metrics.RecordFallbackClassification()
		return ClassifyByKeywords(description), nil
	}

	classification, err := c.classifyWithModel(ctx, description)
	if err != nil {
		c.logger.Warn("model classification failed; falling back to keywords", zap.Error(err))
		c.metrics.RecordFallbackClassification()
		return ClassifyByKeywords(description), nil
	}
	return classification, nil
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

func (c *GeminiClassifier) classifyWithModel(ctx context.Context, description string) (domain.Classification, error) {
	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.cfg.Endpoint, c.cfg.Model, c.cfg.APIKey)

	payload := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: classificationPrompt(description)}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Classification{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Classification{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Classification{}, fmt.Errorf("classifier call returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Classification{}, err
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.Classification{}, err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return domain.Classification{}, fmt.Errorf("classifier response has no candidates")
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	jsonStr := jsonObjectPattern.FindString(text)
	if jsonStr == "" {
		return domain.Classification{}, fmt.Errorf("no JSON object in classifier response")
	}

	var result struct {
		Category    string  `json:"category"`
		Subcategory string  `json:"subcategory"`
		Priority    string  `json:"priority"`
		Confidence  float64 `json:"confidence"`
		Reasoning   string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return domain.Classification{}, err
	}

	classification := domain.Classification{
		Category:    result.Category,
		Subcategory: result.Subcategory,
		Priority:    domain.TicketPriority(result.Priority),
		Confidence:  result.Confidence,
		Reasoning:   result.Reasoning,
	}
	if err := validate(classification); err != nil {
		return domain.Classification{}, err
	}
	return classification, nil
}

func validate(c domain.Classification) error {
	switch c.Priority {
	case domain.TicketPriorityHigh, domain.TicketPriorityMedium, domain.TicketPriorityLow:
	default:
		return fmt.Errorf("invalid priority %q", c.Priority)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", c.Confidence)
	}
	if c.Category == "" || c.Subcategory == "" {
		return fmt.Errorf("missing category or subcategory")
	}
	return nil
}

func classificationPrompt(description string) string {
	return fmt.Sprintf(`You are an expert maintenance issue classifier for retail stores. Analyze the following issue description and classify it.

CATEGORIES & SUBCATEGORIES:
1. Facilities: Cold Storage, Electrical, Plumbing, HVAC, Structural
2. IT: POS Systems, Network, Computers, Software
3. Equipment: Shopping Carts, Shelving, Security, Cleaning
4. General: Maintenance, Safety

PRIORITY RULES:
- HIGH: safety hazards, product spoilage risk, complete system failures, customer-facing critical issues
- MEDIUM: partial functionality loss, operational impact, non-critical system issues
- LOW: cosmetic issues, minor inconveniences, scheduled maintenance

Issue Description: %q

Respond with a JSON object in this exact format:
{"category": "Facilities|IT|Equipment|General", "subcategory": "specific subcategory name", "priority": "HIGH|MEDIUM|LOW", "confidence": 0.95, "reasoning": "explanation"}`, description)
}
