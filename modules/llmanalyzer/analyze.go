package llmanalyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
)

const parseAttempts = 2

const systemPrompt = `You are an order-tracking email analyst. You receive one email and respond with a single JSON object, no prose, no markdown fences. Schema:
{
  "is_relevant": bool,        // true only for order/shipment emails
  "email_type": string,       // order_confirmation | shipment_confirmation | shipment_update | delivery_confirmation
  "order_number": string,
  "tracking_number": string,
  "carrier": string,
  "vendor": string,
  "vendor_domain": string,    // domain of the shop, e.g. "shop.example"
  "status": string,           // ordered | shipment_preparing | shipped | in_transit | out_for_delivery | delivered, or "" if unstated
  "order_date": string,       // "YYYY-MM-DD" or ""
  "total_amount": number,     // order total, 0 if unstated
  "currency": string,         // ISO 4217 code, e.g. "USD", or ""
  "estimated_delivery": string, // ISO 8601 date or ""
  "items": [{"name": string, "quantity": int, "price": number}]
}
Marketing mail, newsletters and anything without an order number or tracking number are not relevant.`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type extraction struct {
	IsRelevant        bool   `json:"is_relevant"`
	EmailType         string `json:"email_type"`
	OrderNumber       string `json:"order_number"`
	TrackingNumber    string `json:"tracking_number"`
	Carrier           string `json:"carrier"`
	Vendor            string `json:"vendor"`
	VendorDomain      string `json:"vendor_domain"`
	Status            string  `json:"status"`
	OrderDate         string  `json:"order_date"`
	TotalAmount       float64 `json:"total_amount"`
	Currency          string  `json:"currency"`
	EstimatedDelivery string  `json:"estimated_delivery"`
	Items             []struct {
		Name     string  `json:"name"`
		Quantity int     `json:"quantity"`
		Price    float64 `json:"price"`
	} `json:"items"`
}

// Analyze sends the message to the configured LLM. Transport failures return
// an error; unparseable model output returns a nil analysis with the failure
// recorded in the raw map.
func (m *Module) Analyze(ctx context.Context, raw models.JSONMap) (*models.Analysis, models.JSONMap, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "llmanalyzer.Analyze")
	defer span.Finish()
	tracing.TagComponentModule(span)

	atomic.AddInt64(&m.activeRequests, 1)
	defer atomic.AddInt64(&m.activeRequests, -1)

	config, err := m.repos.SettingsRepository.GetActiveLLMConfig(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, errors.Wrap(err, "no active LLM configuration")
	}

	apiKey := ""
	if config.APIKey != "" {
		apiKey, err = m.encryptor.Decrypt(config.APIKey)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, nil, errors.Wrap(err, "failed to decrypt LLM api key")
		}
	}

	userContent := fmt.Sprintf("Subject: %s\nFrom: %s\nDate: %s\n\n%s",
		raw.GetString("subject"), raw.GetString("sender"), raw.GetString("email_date"), raw.GetString("body"))

	var content string
	var parsed *extraction
	for attempt := 1; attempt <= parseAttempts; attempt++ {
		content, err = m.complete(ctx, config, apiKey, userContent)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, nil, err
		}

		parsed = parseExtraction(content)
		if parsed != nil {
			break
		}
		span.LogFields(tracingLog.Int("parse_failure.attempt", attempt))
	}

	if parsed == nil {
		m.log.Warnf("analyzer output unparseable after %d attempts", parseAttempts)
		return nil, models.JSONMap{
			"error": "failed to parse analyzer output",
			"raw":   content,
		}, nil
	}

	rawOut := models.JSONMap{}
	_ = json.Unmarshal([]byte(stripFences(content)), &rawOut)

	return m.toAnalysis(parsed, raw), rawOut, nil
}

func (m *Module) complete(ctx context.Context, config *models.LLMConfig, apiKey, userContent string) (string, error) {
	payload := chatRequest{
		Model: config.ModelName,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: 0,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if span := opentracing.SpanFromContext(ctx); span != nil {
		req = tracing.InjectSpanContextIntoHTTPRequest(req, span)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "LLM request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read LLM response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("LLM returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", errors.Wrap(err, "failed to decode LLM response")
	}
	if chatResp.Error != nil {
		return "", errors.Errorf("LLM error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// parseExtraction tolerates markdown fences around the JSON. Returns nil
// when the content is not valid JSON.
func parseExtraction(content string) *extraction {
	var parsed extraction
	if err := json.Unmarshal([]byte(stripFences(content)), &parsed); err != nil {
		return nil
	}
	return &parsed
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// toAnalysis validates the extraction. A message claiming relevance without
// an order number or tracking number is demoted to irrelevant.
func (m *Module) toAnalysis(parsed *extraction, raw models.JSONMap) *models.Analysis {
	analysis := &models.Analysis{
		IsRelevant:     parsed.IsRelevant,
		EmailType:      enum.EmailType(parsed.EmailType),
		OrderNumber:    strings.TrimSpace(parsed.OrderNumber),
		TrackingNumber: strings.TrimSpace(parsed.TrackingNumber),
		Carrier:        strings.TrimSpace(parsed.Carrier),
		Vendor:         strings.TrimSpace(parsed.Vendor),
		VendorDomain:   strings.ToLower(strings.TrimSpace(parsed.VendorDomain)),
	}

	if analysis.OrderNumber == "" && analysis.TrackingNumber == "" {
		analysis.IsRelevant = false
	}

	if status := enum.OrderStatus(parsed.Status); status.IsValid() {
		analysis.Status = status
	}

	analysis.OrderDate = parseDate(parsed.OrderDate)
	analysis.EstimatedDelivery = parseDate(parsed.EstimatedDelivery)

	if parsed.TotalAmount > 0 {
		analysis.TotalAmount = parsed.TotalAmount
		analysis.Currency = strings.ToUpper(strings.TrimSpace(parsed.Currency))
	}

	if analysis.VendorDomain == "" {
		analysis.VendorDomain = utils.ExtractDomainFromEmail(raw.GetString("sender"))
	}

	for _, item := range parsed.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		analysis.Items = append(analysis.Items, models.AnalysisItem{
			Name:     name,
			Quantity: quantity,
			Price:    item.Price,
		})
	}

	return analysis
}

// parseDate accepts the date formats models actually emit.
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
