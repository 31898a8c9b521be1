// Package postalcode resolves Brazilian postal codes (CEP) through the ViaCEP API.
package postalcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize bounds a ViaCEP response body (64KB)
const maxResponseSize = 64 * 1024

// Lookup outcomes recorded on the latency histogram
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var (
	// ErrPostalCodeNotFound is returned when ViaCEP has no address for the code
	ErrPostalCodeNotFound = shared.NewNotFoundError("Postal code not found")
	// ErrInvalidPostalCode is returned for codes that are not eight digits
	ErrInvalidPostalCode = shared.NewValidationError("Postal code must have 8 digits")
	// ErrLookupUnavailable wraps transport and upstream failures
	ErrLookupUnavailable = errors.New("postal code lookup unavailable")
)

// LookupRecorder records lookup latency; telemetry.CustomerMetrics implements it
type LookupRecorder interface {
	RecordLookup(ctx context.Context, d time.Duration, outcome string)
}

// viaCEPResponse is the ViaCEP JSON body. Unknown codes come back as {"erro": true}.
type viaCEPResponse struct {
	CEP         string   `json:"cep"`
	Logradouro  string   `json:"logradouro"`
	Complemento string   `json:"complemento"`
	Unidade     string   `json:"unidade"`
	Bairro      string   `json:"bairro"`
	Localidade  string   `json:"localidade"`
	UF          string   `json:"uf"`
	Estado      string   `json:"estado"`
	Regiao      string   `json:"regiao"`
	Erro        erroFlag `json:"erro"`
}

// erroFlag accepts both true and "true", which ViaCEP has used over time
type erroFlag bool

func (f *erroFlag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	*f = erroFlag(s == "true")
	return nil
}

func (r viaCEPResponse) toAddress(postalCode string) valueobject.Address {
	return valueobject.Address{
		PostalCode: postalCode,
		Street:     r.Logradouro,
		Complement: r.Complemento,
		Unit:       r.Unidade,
		District:   r.Bairro,
		City:       r.Localidade,
		StateCode:  r.UF,
		State:      r.Estado,
		Region:     r.Regiao,
	}.Normalized()
}

// ViaCEPClient implements the application's AddressLookup port
type ViaCEPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	recorder   LookupRecorder
	logger     *zap.Logger
}

// Option configures the ViaCEPClient
type Option func(*ViaCEPClient)

// WithHTTPClient replaces the default instrumented client
func WithHTTPClient(c *http.Client) Option {
	return func(v *ViaCEPClient) {
		if c != nil {
			v.httpClient = c
		}
	}
}

// WithRecorder sets the latency recorder
func WithRecorder(r LookupRecorder) Option {
	return func(v *ViaCEPClient) {
		v.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(v *ViaCEPClient) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewViaCEPClient creates a client from configuration. A non-positive rate disables limiting.
func NewViaCEPClient(cfg config.PostalCodeConfig, opts ...Option) *ViaCEPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	v := &ViaCEPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Lookup resolves a postal code into a normalized address
func (v *ViaCEPClient) Lookup(ctx context.Context, postalCode string) (valueobject.Address, error) {
	code := valueobject.NormalizePostalCode(postalCode)
	if !valueobject.IsValidPostalCode(code) {
		return valueobject.Address{}, ErrInvalidPostalCode
	}

	ctx, span := telemetry.StartSpan(ctx, "postalcode.lookup",
		telemetry.WithAttribute(telemetry.SpanAttrPostalCode, code),
	)
	defer span.End()

	start := time.Now()
	addr, err := v.lookup(ctx, code)
	outcome := OutcomeFound
	switch {
	case errors.Is(err, ErrPostalCodeNotFound):
		outcome = OutcomeNotFound
	case err != nil:
		outcome = OutcomeError
		telemetry.RecordError(span, err)
	default:
		telemetry.SetOK(span)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrOutcome, outcome)
	if v.recorder != nil {
		v.recorder.RecordLookup(ctx, time.Since(start), outcome)
	}
	if err != nil {
		v.logger.Debug("Postal code lookup failed",
			zap.String("postal_code", code),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
	return addr, err
}

func (v *ViaCEPClient) lookup(ctx context.Context, code string) (valueobject.Address, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return valueobject.Address{}, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}

	url := fmt.Sprintf("%s/%s/json/", v.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return valueobject.Address{}, fmt.Errorf("viacep: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return valueobject.Address{}, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return valueobject.Address{}, fmt.Errorf("viacep: failed to read response: %w", err)
	}

	// ViaCEP answers 400 for malformed codes and 200 with erro=true for unknown ones
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return valueobject.Address{}, ErrPostalCodeNotFound
	}
	if resp.StatusCode >= 400 {
		return valueobject.Address{}, fmt.Errorf("%w: HTTP %d", ErrLookupUnavailable, resp.StatusCode)
	}

	var payload viaCEPResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return valueobject.Address{}, fmt.Errorf("viacep: failed to decode response: %w", err)
	}
	if payload.Erro {
		return valueobject.Address{}, ErrPostalCodeNotFound
	}
	return payload.toAddress(code), nil
}
