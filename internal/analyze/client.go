package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"padoca/internal"
	"padoca/internal/config"
)

// Client calls a hosted generative model to extract quotation data from reply
// text. Any failure degrades to the keyword heuristic instead of surfacing an
// error: a reply with a weaker analysis is better than a reply stuck in the
// queue.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *pacer
	fallback   Heuristic
	log        *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.AnalyzerTimeoutMs) * time.Millisecond},
		limiter:    newPacer(cfg.AnalyzerRPS),
		log:        log,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) Analyze(ctx context.Context, text string, items []internal.QuoteItem) (Result, error) {
	result, err := c.analyzeRemote(ctx, text, items)
	if err != nil {
		c.log.Warn("model analysis failed, using heuristic", zap.Error(err))
		return c.fallback.Analyze(ctx, text, items)
	}
	return result, nil
}

func (c *Client) analyzeRemote(ctx context.Context, text string, items []internal.QuoteItem) (Result, error) {
	if strings.TrimSpace(c.cfg.AnalyzerAPIKey) == "" {
		return Result{}, errors.New("missing ANALYZER_API_KEY")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(text, items)}}}},
	})
	if err != nil {
		return Result{}, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.AnalyzerAPIBaseURL, "/"), c.cfg.AnalyzerModel)

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return Result{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.cfg.AnalyzerAPIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("analyzer status %d", resp.StatusCode)
				continue
			}
			return Result{}, fmt.Errorf("analyzer api error: status=%d body=%s", resp.StatusCode, string(respBody))
		}

		var payload generateResponse
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return Result{}, err
		}
		if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
			return Result{}, errors.New("analyzer returned no candidates")
		}
		return parseModelOutput(payload.Candidates[0].Content.Parts[0].Text)
	}

	if lastErr == nil {
		lastErr = errors.New("analyzer request failed")
	}
	return Result{}, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func buildPrompt(text string, items []internal.QuoteItem) string {
	var b strings.Builder
	b.WriteString("Você é um assistente de compras de uma padaria. Analise a resposta do fornecedor abaixo e responda SOMENTE com JSON no formato:\n")
	b.WriteString(`{"analysis":{"hasQuote":bool,"totalQuote":number|null,"deliveryDays":number|null,"paymentTerms":string,"hasProblems":bool,"urgency":"low"|"high","suggestedAction":string},"items":[{"name":string,"unitPrice":number|null,"available":bool|null}]}`)
	b.WriteString("\n\nItens cotados:\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- %s (%.0f %s)\n", it.Name, it.QuantityToOrder, it.Unit)
	}
	b.WriteString("\nResposta do fornecedor:\n")
	b.WriteString(text)
	return b.String()
}

// parseModelOutput tolerates markdown code fences around the JSON body, which
// the model emits even when told not to.
func parseModelOutput(raw string) (Result, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return Result{}, fmt.Errorf("unparseable model output: %w", err)
	}
	return result, nil
}
