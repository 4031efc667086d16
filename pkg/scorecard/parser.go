package scorecard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/walkabout/scorecard/pkg/logger"
	"github.com/walkabout/scorecard/pkg/media"
	"github.com/walkabout/scorecard/pkg/metrics"
	"github.com/walkabout/scorecard/pkg/providers"
)

// Options configures a Parser.
type Options struct {
	Model       string
	MaxTokens   int64
	JPEGQuality int
	Tracker     *metrics.Tracker
}

// Result is the outcome of one parse request.
type Result struct {
	RequestID string
	Labels    []string
	JSON      []byte // compact, keys in input order
	Model     string
	Usage     *providers.UsageInfo
}

// Parser runs the normalize -> request -> reassemble pipeline against one
// provider. It keeps no state between calls.
type Parser struct {
	provider   providers.LLMProvider
	normalizer *media.Normalizer
	model      string
	maxTokens  int64
	tracker    *metrics.Tracker
}

func NewParser(provider providers.LLMProvider, opts Options) *Parser {
	model := opts.Model
	if model == "" {
		model = provider.GetDefaultModel()
	}
	return &Parser{
		provider:   provider,
		normalizer: media.NewNormalizer(opts.JPEGQuality),
		model:      model,
		maxTokens:  opts.MaxTokens,
		tracker:    opts.Tracker,
	}
}

// Normalizer exposes the image normalizer, for callers holding bytes rather than paths.
func (p *Parser) Normalizer() *media.Normalizer {
	return p.normalizer
}

// LoadImages normalizes paths in order and makes their labels unique.
func (p *Parser) LoadImages(paths []string) ([]*media.ImageUnit, error) {
	units := make([]*media.ImageUnit, 0, len(paths))
	for _, path := range paths {
		unit, err := p.normalizer.Normalize(path)
		if err != nil {
			return nil, opError("load image", "", err)
		}
		units = append(units, unit)
	}
	media.DedupeLabels(units)
	return units, nil
}

// ParseFiles is LoadImages followed by Parse.
func (p *Parser) ParseFiles(ctx context.Context, paths []string, single bool) (*Result, error) {
	if err := ValidateCount(len(paths), single); err != nil {
		return nil, err
	}
	units, err := p.LoadImages(paths)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, units, single)
}

// Parse sends units in a single request and reassembles the reply.
func (p *Parser) Parse(ctx context.Context, units []*media.ImageUnit, single bool) (*Result, error) {
	requestID := uuid.NewString()
	if err := ValidateCount(len(units), single); err != nil {
		return nil, opError("validate", requestID, err)
	}

	labels := make([]string, len(units))
	for i, u := range units {
		labels[i] = u.Label
	}

	messages := []providers.Message{{
		Role:    "user",
		Content: BuildPrompt(len(units), single),
		Images:  units,
	}}

	logger.InfoCF("scorecard", "Sending scorecards", logger.Fields{
		"request_id": requestID,
		"images":     len(units),
		"model":      p.model,
		"single":     single,
	})

	start := time.Now()
	resp, err := p.provider.Chat(ctx, messages, p.model, map[string]interface{}{
		"max_tokens": p.maxTokens,
	})
	elapsed := time.Since(start)
	p.record(requestID, len(units), resp, elapsed, err == nil)
	if err != nil {
		logger.ErrorCF("scorecard", "Completion call failed", logger.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, opError("complete", requestID, fmt.Errorf("%w: %w", ErrAPICall, err))
	}

	logger.InfoCF("scorecard", "Completion received", logger.Fields{
		"request_id":    requestID,
		"finish_reason": resp.FinishReason,
		"duration_ms":   elapsed.Milliseconds(),
		"chars":         len(resp.Content),
	})

	var out []byte
	if single {
		out, err = Single(resp.Content)
	} else {
		out, err = Reassemble(resp.Content, labels)
	}
	if err != nil {
		if resp.FinishReason == "length" {
			err = fmt.Errorf("%w (reply truncated at max_tokens=%d)", err, p.maxTokens)
		}
		logger.DebugCF("scorecard", "Unparseable reply", logger.Fields{
			"request_id": requestID,
			"reply":      resp.Content,
		})
		return nil, opError("parse reply", requestID, err)
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	return &Result{
		RequestID: requestID,
		Labels:    labels,
		JSON:      out,
		Model:     model,
		Usage:     resp.Usage,
	}, nil
}

func (p *Parser) record(requestID string, images int, resp *providers.LLMResponse, elapsed time.Duration, ok bool) {
	if p.tracker == nil {
		return
	}
	event := metrics.TokenEvent{
		RequestID:  requestID,
		Model:      p.model,
		Images:     images,
		DurationMS: elapsed.Milliseconds(),
		OK:         ok,
	}
	if resp != nil && resp.Model != "" {
		event.Model = resp.Model
	}
	if resp != nil && resp.Usage != nil {
		event.InputTokens = resp.Usage.PromptTokens
		event.OutputTokens = resp.Usage.CompletionTokens
	}
	if err := p.tracker.Record(event); err != nil {
		logger.WarnCF("scorecard", "Failed to record token usage", logger.Fields{
			"error": err.Error(),
		})
	}
}
