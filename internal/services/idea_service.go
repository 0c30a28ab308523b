package services

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
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/platform/textutil"
)

const (
	defaultIdeaTimeout   = 30 * time.Second
	maxIdeaResponseBytes = 1 << 20
	maxIdeaAnswers       = 50
	maxIdeaAnswerLength  = 2000
)

var (
	// ErrIdeaInvalidInput indicates the questionnaire is empty or oversized.
	ErrIdeaInvalidInput = errors.New("ideas: invalid input")
	// ErrIdeaUnavailable indicates the co-pilot endpoint failed or is not configured.
	ErrIdeaUnavailable = errors.New("ideas: unavailable")
)

// IdeaServiceDeps configures the co-pilot client.
type IdeaServiceDeps struct {
	Endpoint   string
	AuthToken  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Clock      func() time.Time
}

type ideaService struct {
	endpoint string
	token    string
	client   *http.Client
	clock    func() time.Time
}

var _ IdeaService = (*ideaService)(nil)

// NewIdeaService constructs an IdeaService. An empty endpoint yields a service that always
// reports ErrIdeaUnavailable.
func NewIdeaService(deps IdeaServiceDeps) IdeaService {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultIdeaTimeout
	}
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ideaService{
		endpoint: strings.TrimSpace(deps.Endpoint),
		token:    strings.TrimSpace(deps.AuthToken),
		client:   client,
		clock:    clock,
	}
}

type ideaRequest struct {
	SellerUID string            `json:"sellerUid"`
	Answers   map[string]string `json:"answers"`
}

// SuggestIdeas posts the answers to the co-pilot and returns its JSON reply untouched.
// Failures are not retried.
func (s *ideaService) SuggestIdeas(ctx context.Context, cmd IdeaCommand) (IdeaSuggestion, error) {
	answers, err := cleanAnswers(cmd.Answers)
	if err != nil {
		return IdeaSuggestion{}, err
	}
	if s.endpoint == "" {
		return IdeaSuggestion{}, fmt.Errorf("%w: endpoint not configured", ErrIdeaUnavailable)
	}

	body, err := json.Marshal(ideaRequest{SellerUID: strings.TrimSpace(cmd.SellerUID), Answers: answers})
	if err != nil {
		return IdeaSuggestion{}, fmt.Errorf("ideas: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return IdeaSuggestion{}, fmt.Errorf("%w: %v", ErrIdeaUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return IdeaSuggestion{}, fmt.Errorf("%w: %v", ErrIdeaUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxIdeaResponseBytes+1))
	if err != nil {
		return IdeaSuggestion{}, fmt.Errorf("%w: read response: %v", ErrIdeaUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		requestctx.Logger(ctx).Warn("idea co-pilot rejected request", zap.Int("status", resp.StatusCode))
		return IdeaSuggestion{}, fmt.Errorf("%w: upstream status %d", ErrIdeaUnavailable, resp.StatusCode)
	}
	if len(payload) > maxIdeaResponseBytes || !json.Valid(payload) {
		return IdeaSuggestion{}, fmt.Errorf("%w: malformed upstream response", ErrIdeaUnavailable)
	}
	return IdeaSuggestion{Body: json.RawMessage(payload), GeneratedAt: s.clock().UTC()}, nil
}

func cleanAnswers(answers map[string]string) (map[string]string, error) {
	out := textutil.CompactStringMap(answers)
	for key, value := range out {
		if utf8.RuneCountInString(value) > maxIdeaAnswerLength {
			return nil, fmt.Errorf("%w: answer %q is too long", ErrIdeaInvalidInput, key)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one answer is required", ErrIdeaInvalidInput)
	}
	if len(out) > maxIdeaAnswers {
		return nil, fmt.Errorf("%w: too many answers", ErrIdeaInvalidInput)
	}
	return out, nil
}
