package insight

import (
	"bytes"
	"encoding/json"
	"fmt"

	"BtcInsight/internal/model"

	"github.com/mitchellh/mapstructure"
)

type completion struct {
	GeneratedText *string `mapstructure:"generated_text"`
}

// ExtractInsightText returns the generated_text of the first element of
// a decoded inference response. Any other shape yields a
// *model.MalformedAIResponseError.
func ExtractInsightText(raw any) (string, error) {
	list, ok := raw.([]any)
	if !ok {
		return "", &model.MalformedAIResponseError{Reason: fmt.Sprintf("expected a list, got %s", shapeOf(raw))}
	}
	if len(list) == 0 {
		return "", &model.MalformedAIResponseError{Reason: "empty list"}
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return "", &model.MalformedAIResponseError{Reason: fmt.Sprintf("first element is %s, not an object", shapeOf(list[0]))}
	}

	var c completion
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:    &c,
		MatchName: func(key, field string) bool { return key == field },
	})
	if err != nil {
		return "", &model.MalformedAIResponseError{Reason: err.Error()}
	}
	if err := dec.Decode(first); err != nil {
		return "", &model.MalformedAIResponseError{Reason: "generated_text is not a string"}
	}
	if c.GeneratedText == nil {
		return "", &model.MalformedAIResponseError{Reason: "missing generated_text"}
	}
	return *c.GeneratedText, nil
}

// DecodeInsightText parses a raw response body and extracts the text.
func DecodeInsightText(body []byte) (string, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return "", &model.MalformedAIResponseError{Reason: "invalid JSON: " + err.Error()}
	}
	return ExtractInsightText(raw)
}

func shapeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "a list"
	case string:
		return "a string"
	case float64, json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
