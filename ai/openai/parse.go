// Copyright 2025 Mercil Contributors
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

// stripCodeFences removes the markdown fences some models wrap around
// JSON despite JSON mode being requested.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// normalizeLabel canonicalizes a model-produced label: lowercased, trimmed,
// inner whitespace collapsed to single spaces.
func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// repairJSON patches the one malformation small vision models are prone
// to: dropping the opening quote of an object key while keeping the
// closing one, as in `{label": "water"}`. Everything else passes through
// unchanged.
func repairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	for i := 0; i < len(s); {
		c := s[i]
		b.WriteByte(c)
		i++
		if c != '{' && c != ',' {
			continue
		}

		j := i
		for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n') {
			j++
		}

		// A bare identifier run that ends in `":` is a key missing its
		// opening quote. Anything else is left for the main loop.
		k := j
		for k < len(s) && (isKeyChar(s[k]) || s[k] == ' ') {
			k++
		}
		if k > j && k+1 < len(s) && s[k] == '"' && s[k+1] == ':' {
			b.WriteString(s[i:j])
			b.WriteByte('"')
			b.WriteString(strings.TrimSpace(s[j:k]))
			i = k
		}
	}

	return b.String()
}

func isKeyChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
