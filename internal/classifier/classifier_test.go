package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/observability"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

func newTestClassifier(cfg config.ClassifierConfig) (*GeminiClassifier, *observability.Metrics) {
	metrics := observability.NewMetrics()
	return NewGeminiClassifier(cfg, zap.NewNop(), metrics), metrics
}

func TestClassifyByKeywords(t *testing.T) {
	cases := []struct {
		description string
		category    string
		subcategory string
		priority    domain.TicketPriority
		confidence  float64
	}{
		{"The walk-in freezer is not holding temperature", "Facilities", "Cold Storage", domain.TicketPriorityHigh, 0.85},
		{"Refrigerator in aisle 3 leaking", "Facilities", "Cold Storage", domain.TicketPriorityHigh, 0.85},
		{"Light fixture flickering near entrance", "Facilities", "Electrical", domain.TicketPriorityMedium, 0.80},
		{"Power outlet sparking behind deli counter", "Facilities", "Electrical", domain.TicketPriorityMedium, 0.80},
		{"Checkout lane 4 frozen, POS unresponsive", "IT", "POS Systems", domain.TicketPriorityHigh, 0.90},
		{"WiFi down in the back office", "IT", "Network", domain.TicketPriorityMedium, 0.75},
		{"Shopping cart wheel broken", "Equipment", "General Equipment", domain.TicketPriorityLow, 0.70},
		{"Door hinge squeaks", "General", "Maintenance", domain.TicketPriorityMedium, 0.60},
	}

	for _, tc := range cases {
		got := ClassifyByKeywords(tc.description)
		assert.Equal(t, tc.category, got.Category, tc.description)
		assert.Equal(t, tc.subcategory, got.Subcategory, tc.description)
		assert.Equal(t, tc.priority, got.Priority, tc.description)
		assert.Equal(t, tc.confidence, got.Confidence, tc.description)
		assert.NotEmpty(t, got.Reasoning, tc.description)
	}
}

func TestClassifyByKeywordsIsCaseInsensitive(t *testing.T) {
	got := ClassifyByKeywords("FREEZER DOWN")
	assert.Equal(t, "Cold Storage", got.Subcategory)
}

func TestClassifyByKeywordsFirstRuleWins(t *testing.T) {
	// Mentions both cooling and electrical; the cold storage rule is earlier.
	got := ClassifyByKeywords("cooling unit tripping the electrical breaker")
	assert.Equal(t, "Cold Storage", got.Subcategory)
	assert.Equal(t, domain.TicketPriorityHigh, got.Priority)
}

func TestClassifyEmptyDescription(t *testing.T) {
	c, _ := newTestClassifier(config.ClassifierConfig{})
	_, err := c.Classify(context.Background(), "   ")
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestClassifyWithoutAPIKeyUsesKeywords(t *testing.T) {
	c, metrics := newTestClassifier(config.ClassifierConfig{})
	got, err := c.Classify(context.Background(), "freezer compressor rattling")
	require.NoError(t, err)
	assert.Equal(t, "Facilities", got.Category)
	assert.Equal(t, "Cold Storage", got.Subcategory)
	assert.Equal(t, int64(1), metrics.Snapshot()["fallback_classification"])
}

func TestClassifyWithModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Here you go:\n{\"category\":\"IT\",\"subcategory\":\"POS Systems\",\"priority\":\"HIGH\",\"confidence\":0.95,\"reasoning\":\"register down\"}"}]}}]}`))
	}))
	defer server.Close()

	c, _ := newTestClassifier(config.ClassifierConfig{
		APIKey:         "test-key",
		Model:          "gemini-2.0-flash",
		Endpoint:       server.URL,
		TimeoutSeconds: 2,
	})
	got, err := c.Classify(context.Background(), "register 2 will not boot")
	require.NoError(t, err)
	assert.Equal(t, "IT", got.Category)
	assert.Equal(t, "POS Systems", got.Subcategory)
	assert.Equal(t, domain.TicketPriorityHigh, got.Priority)
	assert.Equal(t, 0.95, got.Confidence)
}

func TestClassifyModelFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, metrics := newTestClassifier(config.ClassifierConfig{
		APIKey:         "test-key",
		Model:          "gemini-2.0-flash",
		Endpoint:       server.URL,
		TimeoutSeconds: 2,
	})
	got, err := c.Classify(context.Background(), "checkout terminal stuck")
	require.NoError(t, err)
	assert.Equal(t, "POS Systems", got.Subcategory)
	assert.Equal(t, int64(1), metrics.Snapshot()["fallback_classification"])
}

func TestClassifyModelInvalidPriorityFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"category\":\"IT\",\"subcategory\":\"Network\",\"priority\":\"URGENT\",\"confidence\":0.9,\"reasoning\":\"x\"}"}]}}]}`))
	}))
	defer server.Close()

	c, _ := newTestClassifier(config.ClassifierConfig{
		APIKey:         "test-key",
		Model:          "gemini-2.0-flash",
		Endpoint:       server.URL,
		TimeoutSeconds: 2,
	})
	got, err := c.Classify(context.Background(), "wifi keeps dropping")
	require.NoError(t, err)
	assert.Equal(t, "Network", got.Subcategory)
	assert.Equal(t, domain.TicketPriorityMedium, got.Priority)
}
