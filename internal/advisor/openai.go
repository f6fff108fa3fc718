package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tradepilot/internal/market"
)

const systemPrompt = `You are a trading advisor. Given a market snapshot, answer with a single JSON object:
{"action": "enter_long|enter_short|exit|hold", "confidence": 0-100, "entry_price": number, "stop_loss": number, "take_profit": number, "size_pct": 0-100, "reasoning": "short text"}
Answer with JSON only, no prose.`

// OpenAIChatProvider talks to any OpenAI-compatible chat completion endpoint
// (/v1/chat/completions). The dispatcher owns the call timeout via ctx.
type OpenAIChatProvider struct {
	id      string
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

func NewOpenAIChatProvider(id, baseURL, apiKey, model string, timeout time.Duration) *OpenAIChatProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIChatProvider{
		id:      id,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIChatProvider) ID() string { return p.id }

func (p *OpenAIChatProvider) Request(ctx context.Context, snapshot market.Snapshot) (string, error) {
	user, err := json.Marshal(snapshotPrompt(snapshot))
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": string(user)},
		},
		"temperature": 0.2,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(p.baseURL, "/")
	if !strings.HasSuffix(url, "/chat/completions") {
		url += "/chat/completions"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("advisor %s: http %d: %s", p.id, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("advisor %s: empty choices", p.id)
	}
	return r.Choices[0].Message.Content, nil
}

// snapshotPrompt trims the snapshot to what the model needs: symbol, price
// and the indicator features. Raw candles stay local.
func snapshotPrompt(s market.Snapshot) map[string]any {
	return map[string]any{
		"symbol":   s.Symbol,
		"price":    s.Price,
		"at":       s.At.UTC().Format(time.RFC3339),
		"features": s.Features,
	}
}
