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

import "strings"

// extractJSONBlock pulls the JSON object out of a model response. It accepts
// ```json fenced blocks, bare ``` fences and raw JSON surrounded by prose.
func extractJSONBlock(s string) string {
	s = strings.TrimSpace(s)

	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(s, fence)
		if start == -1 {
			continue
		}
		body := s[start+len(fence):]
		if end := strings.Index(body, "```"); end != -1 {
			return strings.TrimSpace(body[:end])
		}
	}

	// Prose around raw JSON
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first != -1 && last > first {
		return s[first : last+1]
	}
	return s
}

// repairJSON fixes the defects small models commonly produce: keys that are
// missing their opening quote (`, type":`) and trailing commas before a
// closing bracket. String contents are left untouched.
func repairJSON(s string) string {
	src := []rune(s)
	out := make([]rune, 0, len(src)+16)
	inString := false

	for i := 0; i < len(src); i++ {
		ch := src[i]

		if inString {
			out = append(out, ch)
			if ch == '\\' && i+1 < len(src) {
				i++
				out = append(out, src[i])
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			out = append(out, ch)
		case ',':
			// Drop the comma when only whitespace separates it from } or ]
			j := skipSpace(src, i+1)
			if j < len(src) && (src[j] == '}' || src[j] == ']') {
				continue
			}
			out = append(out, ch)
			out = appendKeyQuote(out, src, &i)
		case '{':
			out = append(out, ch)
			out = appendKeyQuote(out, src, &i)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

// appendKeyQuote copies whitespace after a { or , and inserts the missing
// opening quote when a bare identifier is directly followed by `":`.
func appendKeyQuote(out, src []rune, i *int) []rune {
	j := skipSpace(src, *i+1)
	out = append(out, src[*i+1:j]...)
	*i = j - 1

	if j >= len(src) || !isLetter(src[j]) {
		return out
	}
	k := j
	for k < len(src) && (isLetter(src[k]) || src[k] == '_') {
		k++
	}
	if k+1 < len(src) && src[k] == '"' && src[k+1] == ':' {
		out = append(out, '"')
		out = append(out, src[j:k+1]...)
		*i = k
	}
	return out
}

func skipSpace(src []rune, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\n' || src[i] == '\t' || src[i] == '\r') {
		i++
	}
	return i
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
