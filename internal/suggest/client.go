package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mimic-chat/backend/internal/models"
	"mimic-chat/backend/pkg/cache"
	"mimic-chat/backend/pkg/config"
	"mimic-chat/backend/pkg/logger"
	"mimic-chat/backend/pkg/resilience"
	"mimic-chat/backend/pkg/secrets"
)

// Client talks to the hosted generative-language service that drafts reply
// suggestions. Failures are swallowed by contract: the business caller always
// gets a (possibly empty) slice and a nil error, because "no suggestions" is
// a normal outcome and must never surface as a user-visible failure.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	window     int
	count      int
	breaker    *resilience.CircuitBreaker
	results    *cache.Cache
	log        *logger.Logger
}

// Options configures a suggestion client.
type Options struct {
	BaseURL      string
	Model        string
	APIKey       string
	Timeout      time.Duration
	Window       int
	Count        int
	CacheResults bool
}

// NewClient creates a suggestion client from configuration. The API key is
// resolved through the secrets manager with an environment fallback.
func NewClient(log *logger.Logger) *Client {
	cfg := config.Get()

	return NewClientWithOptions(Options{
		BaseURL:      cfg.Suggest.ServiceURL,
		Model:        cfg.Suggest.Model,
		APIKey:       secrets.GetSecretWithDefault(context.Background(), "suggest-api-key", ""),
		Timeout:      cfg.Suggest.Timeout,
		Window:       cfg.Suggest.Window,
		Count:        cfg.Suggest.Count,
		CacheResults: cfg.Cache.Enabled,
	}, log)
}

// NewClientWithOptions creates a suggestion client with explicit options
func NewClientWithOptions(opts Options, log *logger.Logger) *Client {
	if opts.APIKey == "" {
		log.Warn("no suggestion API key configured, suggestions will be empty")
	}
	if opts.Window <= 0 {
		opts.Window = 20
	}
	if opts.Count <= 0 {
		opts.Count = 3
	}

	var results *cache.Cache
	if opts.CacheResults {
		cfg := config.Get()
		results = cache.New(cfg.Cache.TTL, cfg.Cache.PurgeWindow, cfg.Cache.MaxSize)
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		apiKey:     opts.APIKey,
		window:     opts.Window,
		count:      opts.Count,
		breaker:    resilience.New(resilience.DefaultConfig("suggest"), log),
		results:    results,
		log:        log,
	}
}

// Generate returns ranked reply suggestions for the requesting user given
// the chat history. An empty history yields an empty slice without calling
// out. The error return is reserved for programming mistakes; transport and
// parse failures come back as an empty slice.
func (c *Client) Generate(ctx context.Context, history []models.Message, currentUser, otherUser *models.User) ([]Suggestion, error) {
	if len(history) == 0 || currentUser == nil {
		return []Suggestion{}, nil
	}

	// Bounded window, most-recent messages kept
	if len(history) > c.window {
		history = history[len(history)-c.window:]
	}

	cacheKey := fmt.Sprintf("%s:%s:%s", history[len(history)-1].ChatID, history[len(history)-1].ID, currentUser.ID)
	if c.results != nil {
		if cached, ok := c.results.Get(cacheKey); ok {
			return cached.([]Suggestion), nil
		}
	}

	if c.apiKey == "" {
		return []Suggestion{}, nil
	}

	var suggestions []Suggestion
	err := c.breaker.Execute(func() error {
		var callErr error
		suggestions, callErr = c.call(ctx, history, currentUser, otherUser)
		return callErr
	})
	if err != nil {
		c.log.Warn("suggestion generation failed, returning empty result", "error", err.Error())
		return []Suggestion{}, nil
	}

	if c.results != nil {
		c.results.Set(cacheKey, suggestions)
	}
	return suggestions, nil
}

// call performs one request against the generative API
func (c *Client) call(ctx context.Context, history []models.Message, currentUser, otherUser *models.User) ([]Suggestion, error) {
	reqBody := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction(currentUser, c.count)}}},
		Contents: []content{
			{Role: "user", Parts: []part{{Text: userPrompt(history, currentUser, otherUser, c.count)}}},
		},
		GenerationConfig: generationConfig{ResponseMIMEType: "application/json"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggestion service returned status %d", httpResp.StatusCode)
	}

	var resp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return []Suggestion{}, nil
	}

	var items []candidateItem
	if err := json.Unmarshal([]byte(resp.Candidates[0].Content.Parts[0].Text), &items); err != nil {
		return nil, fmt.Errorf("failed to parse candidate payload: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(items))
	for i, item := range items {
		if item.Text == "" {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Text:       item.Text,
			Confidence: rankConfidence(i),
		})
	}
	return suggestions, nil
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// rankConfidence maps candidate rank to a descending confidence score
func rankConfidence(rank int) float64 {
	score := 0.9 - 0.15*float64(rank)
	if score < 0.1 {
		score = 0.1
	}
	return score
}
