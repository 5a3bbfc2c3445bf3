package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSONResponse parses a model reply into v, tolerating prose or code
// fences around the JSON object
func DecodeJSONResponse(responseText string, v any) error {
	if err := json.Unmarshal([]byte(responseText), v); err == nil {
		return nil
	}

	jsonStart := strings.Index(responseText, "{")
	jsonEnd := strings.LastIndex(responseText, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return fmt.Errorf("failed to extract JSON from LLM response")
	}

	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), v); err != nil {
		return fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return nil
}
