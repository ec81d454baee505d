package cli

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Tokenizes JSON into keys, string values, and literals.
var jsonTokenRegex = regexp.MustCompile(`("(\\u[a-zA-Z0-9]{4}|\\[^u]|[^\\"])*"(\s*:)?|\b(true|false|null)\b|-?\d+(?:\.\d*)?(?:[eE][+\-]?\d+)?)`)

// HighlightJSON applies ANSI colors to a JSON string, minified or
// indented.
func HighlightJSON(jsonStr string) string {
	if !Enabled() {
		return jsonStr
	}

	return jsonTokenRegex.ReplaceAllStringFunc(jsonStr, func(token string) string {
		switch {
		case strings.HasSuffix(token, ":"):
			key := token[:len(token)-1]
			return fmt.Sprintf("%s%s%s:", Blue, key, ResetCode)

		case strings.HasPrefix(token, "\""):
			return fmt.Sprintf("%s%s%s", Green, token, ResetCode)

		case token == "true" || token == "false":
			return fmt.Sprintf("%s%s%s", Yellow, token, ResetCode)

		case token == "null":
			return fmt.Sprintf("%s%s%s", DimCode, token, ResetCode)

		default:
			return fmt.Sprintf("%s%s%s", Purple, token, ResetCode)
		}
	})
}

// PrettyFormat marshals v to indented JSON and colorizes it.
func PrettyFormat(v interface{}) string {
	var str string
	switch t := v.(type) {
	case []byte:
		str = string(t)
	case string:
		str = t
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%+v", v)
		}
		str = string(b)
	}

	return HighlightJSON(str)
}

// PrettyPrint prints the formatted JSON to stdout with a newline.
func PrettyPrint(v interface{}) {
	fmt.Println(PrettyFormat(v))
}
