package model

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentcookbook/core"
)

// ToolResultText renders a function response as the text body providers
// expect for tool results. String results pass through, other values are
// JSON encoded and errors are prefixed with "Error: ".
func ToolResultText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "Error: " + fr.Error
	}

	switch v := fr.Response.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(b)
	}
}
