package batch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the outcome of a single item in a batch.
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "success" or "error"
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates the results of a batch operation.
type Summary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// ParseStringOrArray accepts a single string, an array of strings, or a
// JSON-encoded string array. Agent runtimes serialize the same argument in
// all three shapes.
func ParseStringOrArray(param interface{}, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			var decoded []string
			if err := json.Unmarshal([]byte(v), &decoded); err != nil {
				return nil, fmt.Errorf("%s is not a valid JSON array: %w", paramName, err)
			}
			return validateItems(decoded, paramName)
		}
		return []string{v}, nil

	case []interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		items := make([]string, 0, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			items = append(items, str)
		}
		return validateItems(items, paramName)

	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
}

func validateItems(items []string, paramName string) ([]string, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", paramName)
	}
	for i, item := range items {
		if item == "" {
			return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
		}
	}
	return items, nil
}

// ProcessBatch runs fn for each ID and collects per-item results. A failed
// item does not stop the batch.
func ProcessBatch(ids []string, fn func(id string) (string, error)) []Result {
	results := make([]Result, 0, len(ids))

	for _, id := range ids {
		result := Result{ID: id}
		res, err := fn(id)
		if err != nil {
			result.Status = "error"
			result.Error = err.Error()
		} else {
			result.Status = "success"
			result.Result = res
		}
		results = append(results, result)
	}

	return results
}

// FormatResults renders batch results as indented JSON.
func FormatResults(results []Result) string {
	summary := Summary{
		Total:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Status == "success" {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	return string(out)
}
