// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/poiesic/tutorder/core"
)

var (
	errNotArray  = errors.New("response is not a JSON array")
	errNotObject = errors.New("response contains no JSON object")
)

var (
	fencedBlock   = regexp.MustCompile("(?s)^```(?:\\w+)?\n(.*)```$")
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
)

// stripCodeFence removes a Markdown code fence wrapped around a response.
// A full fence with an optional language tag is unwrapped; otherwise a lone
// fence marker at either end is dropped.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(s[3:])
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[:len(s)-3])
	}
	return s
}

// repairJSON fixes the two mistakes chat models most often make:
// single-quoted strings and a trailing comma before a closing bracket or brace.
func repairJSON(s string) string {
	s = strings.ReplaceAll(s, "'", "\"")
	return trailingComma.ReplaceAllString(s, "$1")
}

// parseOrderList decodes a response into order texts. It tries the text as
// is, then once more after repairJSON. Non-string elements are kept as their
// JSON text and blank elements are dropped.
func parseOrderList(s string) ([]string, error) {
	s = stripCodeFence(s)

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		if err2 := json.Unmarshal([]byte(repairJSON(s)), &items); err2 != nil {
			return nil, errors.Join(errNotArray, err2)
		}
	}

	orders := make([]string, 0, len(items))
	for _, raw := range items {
		text := elementText(raw)
		if strings.TrimSpace(text) == "" {
			continue
		}
		orders = append(orders, text)
	}
	return orders, nil
}

// parseFields decodes a response into a field mapping. When the whole text is
// not an object, the first balanced {...} span is tried instead. If neither
// decodes, both are tried once more after repairJSON.
func parseFields(s string) (core.Fields, error) {
	s = stripCodeFence(s)

	values, err := locateObject(s)
	if err != nil {
		var err2 error
		if values, err2 = locateObject(repairJSON(s)); err2 != nil {
			return nil, err
		}
	}

	fields := make(core.Fields, len(values))
	for k, raw := range values {
		if isNull(raw) {
			continue
		}
		fields[k] = elementText(raw)
	}
	return fields, nil
}

func locateObject(s string) (map[string]json.RawMessage, error) {
	values, err := decodeObject(s)
	if err == nil {
		return values, nil
	}
	span, ok := firstObjectSpan(s)
	if !ok {
		return nil, errNotObject
	}
	return decodeObject(span)
}

func decodeObject(s string) (map[string]json.RawMessage, error) {
	var values map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, err
	}
	if values == nil {
		return nil, errNotObject
	}
	return values, nil
}

// elementText returns the string value of a JSON string, or the compact
// literal text of anything else.
func elementText(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// firstObjectSpan locates the first balanced {...} span in s. Braces inside
// string literals are ignored.
func firstObjectSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
