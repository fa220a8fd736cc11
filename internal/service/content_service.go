package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/pkg/config"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

const maxContentResponseBytes = 4 << 20

// ContentService calls the external content generation and grading service. A non-success
// reply is an ordinary result the caller shows with a retry affordance, never an error.
type ContentService struct {
	client      *http.Client
	endpoint    string
	apiKey      string
	maxAttempts int
	backoff     time.Duration
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewContentService constructs the client. A nil httpClient gets one with cfg.Timeout.
func NewContentService(cfg config.ContentConfig, httpClient *http.Client, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ContentService {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &ContentService{
		client:      httpClient,
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:      cfg.APIKey,
		maxAttempts: attempts,
		backoff:     cfg.RetryBackoff,
		validator:   validate,
		metrics:     metrics,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Generate asks for lesson or quiz material.
func (s *ContentService) Generate(ctx context.Context, req models.ContentRequest) (*models.ContentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content request")
	}
	return s.call(ctx, "generate", req)
}

// Grade asks for a grade of a free-text answer.
func (s *ContentService) Grade(ctx context.Context, req models.GradeRequest) (*models.ContentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading request")
	}
	return s.call(ctx, "grade", req)
}

type contentReply struct {
	Success bool        `json:"success"`
	Content interface{} `json:"content"`
	Error   string      `json:"error"`
}

// call retries transport failures, 429 and 5xx with exponential backoff. Only context
// cancellation surfaces as an error.
func (s *ContentService) call(ctx context.Context, operation string, payload interface{}) (*models.ContentResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}

	var lastFailure string
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.backoff*time.Duration(1<<(attempt-2))); err != nil {
				return nil, err
			}
		}

		result, retry, failure := s.attempt(ctx, operation, body)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retry {
			result.Attempts = attempt
			s.metrics.RecordContentCall(operation, outcomeLabel(result))
			return result, nil
		}
		lastFailure = failure
		s.logger.Warn("content service attempt failed",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.String("reason", failure),
		)
	}

	s.metrics.RecordContentCall(operation, "exhausted")
	return &models.ContentResult{
		Success:   false,
		Error:     "content service unavailable: " + lastFailure,
		Retryable: true,
		Attempts:  s.maxAttempts,
	}, nil
}

// attempt performs one request. It reports whether the failure is transient.
func (s *ContentService) attempt(ctx context.Context, operation string, body []byte) (*models.ContentResult, bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/"+operation, bytes.NewReader(body))
	if err != nil {
		return &models.ContentResult{Error: "invalid content endpoint"}, false, ""
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, err.Error()
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxContentResponseBytes))
	if err != nil {
		return nil, true, err.Error()
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Sprintf("status %d", resp.StatusCode)
	}

	var reply contentReply
	decodeErr := json.Unmarshal(raw, &reply)
	if resp.StatusCode >= http.StatusBadRequest {
		msg := reply.Error
		if decodeErr != nil || msg == "" {
			msg = fmt.Sprintf("content service rejected the request (status %d)", resp.StatusCode)
		}
		return &models.ContentResult{Success: false, Error: msg}, false, ""
	}
	if decodeErr != nil {
		return &models.ContentResult{Success: false, Error: "content service returned an unreadable reply", Retryable: true}, false, ""
	}
	if !reply.Success {
		msg := reply.Error
		if msg == "" {
			msg = "content service could not complete the request"
		}
		return &models.ContentResult{Success: false, Error: msg, Retryable: true}, false, ""
	}
	return &models.ContentResult{Success: true, Content: reply.Content}, false, ""
}

func outcomeLabel(result *models.ContentResult) string {
	if result.Success {
		return "success"
	}
	return "failure"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
