package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "text\n```\n{\"a\": 1}\n```\nmore", `{"a": 1}`},
		{"raw", `  {"a": 1}  `, `{"a": 1}`},
		{"prose around", `Sure! {"a": {"b": 2}} Hope that helps.`, `{"a": {"b": 2}}`},
		{"nothing", "no json", "no json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONBlock(tt.in))
		})
	}
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid unchanged", `{"a": "b, c", "d": [1, 2]}`, `{"a": "b, c", "d": [1, 2]}`},
		{"missing opening quote", `{"summary": "x", owner": "y"}`, `{"summary": "x", "owner": "y"}`},
		{"missing quote after brace", `{ summary": "x"}`, `{ "summary": "x"}`},
		{"trailing comma object", `{"a": 1,}`, `{"a": 1}`},
		{"trailing comma array", `{"a": [1, 2, ]}`, `{"a": [1, 2 ]}`},
		{"comma inside string kept", `{"a": "x,}"}`, `{"a": "x,}"}`},
		{"escaped quote", `{"a": "say \"hi\", ok"}`, `{"a": "say \"hi\", ok"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repairJSON(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)), got)
		})
	}
}
