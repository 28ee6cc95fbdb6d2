package utils

import (
	"encoding/json"
	"fmt"
	"regexp"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// nonFiniteLiteral matches the bare NaN / Infinity tokens Python's json module
// writes for float('nan') and float('inf'). String contents are not excluded;
// statement line names never look like a delimited NaN.
var nonFiniteLiteral = regexp.MustCompile(`([:\[,]\s*)(-?Infinity|NaN)(\s*[,\]\}])`)

// QuoteNonFinite turns bare NaN/Infinity tokens into strings so a strict
// decoder can read them into a type that understands them.
func QuoteNonFinite(input string) string {
	// Run twice: adjacent tokens share a delimiter, so one pass can skip every other one.
	out := nonFiniteLiteral.ReplaceAllString(input, `$1"$2"$3`)
	return nonFiniteLiteral.ReplaceAllString(out, `$1"$2"$3`)
}

// RepairJSON attempts to fix common JSON damage (unquoted keys, single quotes,
// trailing commas, comments, unterminated containers).
// Uses github.com/RealAlexandreAI/json-repair.
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
// Hjson supports comments, unquoted keys and strings, optional commas and
// multiline strings, which is what hand-written assumption files tend to use.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(jsonBytes), nil
}

// ParseHJSONToStruct converts Hjson to JSON and decodes it into schema, so
// the struct's json tags apply.
func ParseHJSONToStruct(hjsonData string, schema interface{}) error {
	jsonData, err := ParseHJSON(hjsonData)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonData), schema); err != nil {
		return fmt.Errorf("HJSON_UNMARSHAL_ERROR: %v", err)
	}
	return nil
}

// SmartParse tries multiple parsing strategies to decode input into schema.
// Order of attempts:
// 1. Standard JSON parse
// 2. Standard JSON after quoting NaN/Infinity literals
// 3. JSON repair
// 4. Hjson parse (most lenient)
func SmartParse(input string, schema interface{}) (string, error) {
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return input, nil
	}

	quoted := QuoteNonFinite(input)
	if err := json.Unmarshal([]byte(quoted), schema); err == nil {
		return quoted, nil
	}

	if repaired, err := RepairJSON(quoted); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return repaired, nil
		}
	}

	if hjsonResult, err := ParseHJSON(quoted); err == nil {
		if err := json.Unmarshal([]byte(hjsonResult), schema); err == nil {
			return hjsonResult, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}
