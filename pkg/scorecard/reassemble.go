package scorecard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/walkabout/scorecard/pkg/logger"
)

var numberedKeyRe = regexp.MustCompile(`^image([1-9][0-9]*)$`)

// ExtractJSON pulls the JSON object out of a model reply, dropping markdown
// code fences and any prose around the outermost braces.
func ExtractJSON(reply string) (string, error) {
	content := strings.TrimSpace(reply)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if !gjson.Valid(content) {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end < start || !gjson.Valid(content[start:end+1]) {
			return "", fmt.Errorf("%w: reply is not valid JSON", ErrResponseParse)
		}
		content = content[start : end+1]
	}

	if !gjson.Parse(content).IsObject() {
		return "", fmt.Errorf("%w: reply is not a JSON object", ErrResponseParse)
	}
	return content, nil
}

// Reassemble re-keys the per-image objects in reply by labels.
//
// Keys of the form image1..imageN are matched by number. Any other key set is
// matched by position: the Nth key in document order belongs to the Nth label.
// The result is compact JSON with keys in label order.
func Reassemble(reply string, labels []string) ([]byte, error) {
	body, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	var keys []string
	var values []string
	gjson.Parse(body).ForEach(func(key, value gjson.Result) bool {
		keys = append(keys, key.String())
		values = append(values, value.Raw)
		return true
	})

	if len(keys) > len(labels) {
		return nil, fmt.Errorf("%w: reply has %d entries for %d images", ErrResponseParse, len(keys), len(labels))
	}
	if len(keys) < len(labels) {
		logger.WarnCF("scorecard", "Reply has fewer entries than images", logger.Fields{
			"entries": len(keys),
			"images":  len(labels),
		})
	}

	slots := make([]string, len(labels))
	if order, ok := numberedOrder(keys, len(labels)); ok {
		for i, slot := range order {
			slots[slot] = values[i]
		}
	} else {
		copy(slots, values)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	wrote := false
	written := make(map[string]bool, len(labels))
	for i, label := range labels {
		if slots[i] == "" {
			continue
		}
		if wrote {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(label)
		if err != nil {
			return nil, fmt.Errorf("encode label %q: %w", label, err)
		}
		if written[string(key)] {
			return nil, fmt.Errorf("%w: two images share the output key %s", ErrUsage, key)
		}
		written[string(key)] = true
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(slots[i])
		wrote = true
	}
	buf.WriteByte('}')

	return pretty.Ugly(buf.Bytes()), nil
}

// numberedOrder maps each key to a zero-based label slot when every key is a
// distinct imageK with 1 <= K <= n.
func numberedOrder(keys []string, n int) ([]int, bool) {
	if len(keys) == 0 {
		return nil, false
	}
	order := make([]int, len(keys))
	used := make(map[int]bool, len(keys))
	for i, k := range keys {
		m := numberedKeyRe.FindStringSubmatch(k)
		if m == nil {
			return nil, false
		}
		num, err := strconv.Atoi(m[1])
		if err != nil || num > n || used[num] {
			return nil, false
		}
		used[num] = true
		order[i] = num - 1
	}
	return order, true
}

// Single returns the reply's scorecard object as compact JSON.
func Single(reply string) ([]byte, error) {
	body, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	return pretty.Ugly([]byte(body)), nil
}

// Render formats compact JSON for output: two-space indented with one array
// element per line when indent is set, single line otherwise. The result has
// no trailing newline.
func Render(data []byte, indent bool) []byte {
	if !indent {
		return pretty.Ugly(data)
	}
	out := pretty.PrettyOptions(data, &pretty.Options{Width: 1, Indent: "  "})
	return bytes.TrimRight(out, "\n")
}
