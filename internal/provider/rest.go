package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultQuotePath = "/quote"

// RESTOptions parameterise a JSON-over-HTTP bridge adapter.
type RESTOptions struct {
	Descriptor Descriptor
	BaseURL    string
	QuotePath  string
	APIKey     string
	UserAgent  string
	Timeout    time.Duration
}

// REST implements Adapter against a provider's public quote API.
type REST struct {
	opts      RESTOptions
	logger    zerolog.Logger
	client    *http.Client
	baseURL   string
	quotePath string
}

// NewREST constructs a REST bridge adapter.
func NewREST(opts RESTOptions, logger zerolog.Logger) *REST {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	quotePath := opts.QuotePath
	if quotePath == "" {
		quotePath = defaultQuotePath
	}

	return &REST{
		opts:      opts,
		logger:    logger.With().Str("component", "rest_adapter").Str("provider", opts.Descriptor.ID).Logger(),
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		quotePath: quotePath,
	}
}

// SupportsRoute checks the declared descriptor support.
func (r *REST) SupportsRoute(sourceChain, destinationChain, token string) bool {
	d := r.opts.Descriptor
	return d.SupportsChain(sourceChain) && d.SupportsChain(destinationChain) && d.SupportsToken(token)
}

// GetQuote requests a quote from the provider's API.
func (r *REST) GetQuote(ctx context.Context, req Request) (Quote, error) {
	if r.baseURL == "" {
		return Quote{}, errors.New("base url not configured")
	}
	if req.Amount.Sign() <= 0 {
		return Quote{}, errors.New("amount must be greater than zero")
	}

	payload := quoteRequest{
		FromChain: req.SourceChain,
		ToChain:   req.DestinationChain,
		FromToken: req.SourceToken,
		ToToken:   req.DestinationToken,
		Amount:    req.Amount.String(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Quote{}, err
	}

	endpoint := r.baseURL + r.quotePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Quote{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	} else {
		httpReq.Header.Set("User-Agent", "bridgerouter/1.0")
	}
	if r.opts.APIKey != "" {
		httpReq.Header.Set("X-API-Key", r.opts.APIKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, parseHTTPError(resp.StatusCode, payloadBytes)
	}

	var quoteRes quoteResponse
	if err := json.Unmarshal(payloadBytes, &quoteRes); err != nil {
		return Quote{}, err
	}

	output, err := decimal.NewFromString(quoteRes.OutputAmount)
	if err != nil {
		return Quote{}, fmt.Errorf("parse output amount: %w", err)
	}
	if output.Sign() <= 0 {
		return Quote{}, errors.New("output amount returned zero")
	}

	fee := decimal.Zero
	if quoteRes.FeeUSD != "" {
		fee, err = decimal.NewFromString(quoteRes.FeeUSD)
		if err != nil {
			return Quote{}, fmt.Errorf("parse fee: %w", err)
		}
	}

	return Quote{
		OutputAmount:         output,
		FeeUSD:               fee,
		EstimatedTimeSeconds: quoteRes.EstimatedTimeSeconds,
	}, nil
}

type quoteRequest struct {
	FromChain string `json:"fromChain"`
	ToChain   string `json:"toChain"`
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
}

type quoteResponse struct {
	OutputAmount         string `json:"outputAmount"`
	FeeUSD               string `json:"feeUsd"`
	EstimatedTimeSeconds int64  `json:"estimatedTimeSeconds"`
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("provider api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("provider api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("provider api error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("provider api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("provider api error (%d)", status)
}

var _ Adapter = (*REST)(nil)
