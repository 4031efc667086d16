package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenEvent records usage for a single completion call.
type TokenEvent struct {
	Timestamp    string  `json:"ts"`
	RequestID    string  `json:"request_id"`
	Model        string  `json:"model"`
	Images       int     `json:"images"`
	InputTokens  int     `json:"in"`
	OutputTokens int     `json:"out"`
	CostUSD      float64 `json:"cost"`
	DurationMS   int64   `json:"duration_ms"`
	OK           bool    `json:"ok"`
}

// Tracker appends token usage events to a JSONL file. A nil *Tracker is valid
// and records nothing.
type Tracker struct {
	filePath string
	mu       sync.Mutex
}

// NewTracker returns a tracker writing to path, or nil when path is empty.
func NewTracker(path string) *Tracker {
	if path == "" {
		return nil
	}
	return &Tracker{filePath: path}
}

// Record appends a token event to the JSONL file.
func (t *Tracker) Record(event TokenEvent) error {
	if t == nil {
		return nil
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	event.CostUSD = calculateCost(event.Model, event.InputTokens, event.OutputTokens)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal token event: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if dir := filepath.Dir(t.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}

	f, err := os.OpenFile(t.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open metrics file: %w", err)
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// Model pricing per million tokens (input, output).
type modelPricing struct {
	inputPerM  float64
	outputPerM float64
}

var pricing = map[string]modelPricing{
	"claude-3-5-sonnet-20240620": {3.0, 15.0},
	"claude-3-5-sonnet-20241022": {3.0, 15.0},
	"claude-sonnet-4-5-20250929": {3.0, 15.0},
	"claude-3-5-haiku-20241022":  {0.8, 4.0},
	"claude-opus-4-20250514":     {15.0, 75.0},
	"gpt-4o":                     {2.5, 10.0},
	"gpt-4o-mini":                {0.15, 0.6},
}

func calculateCost(model string, input, output int) float64 {
	p, ok := pricing[model]
	if !ok {
		// Default to Sonnet pricing
		p = modelPricing{3.0, 15.0}
	}

	return float64(input)*p.inputPerM/1e6 +
		float64(output)*p.outputPerM/1e6
}
