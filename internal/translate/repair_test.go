package translate

import (
	"encoding/json"
	"testing"
)

func TestRepairJSON(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"missing comma between objects", `{"segments":[{"a":1} {"b":2}]}`},
		{"missing comma after string", "{\"a\":\"x\"\n\"b\":\"y\"}"},
		{"missing comma after number", "{\"a\":1\n\"b\":2}"},
		{"missing comma after bool", "{\"a\":true\n\"b\":false}"},
		{"trailing comma in object", `{"a":1,}`},
		{"trailing comma in array", `{"a":[1,2,],}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repaired := RepairJSON(tc.input)
			var target any
			if err := json.Unmarshal([]byte(repaired), &target); err != nil {
				t.Fatalf("repaired payload does not parse: %v\ninput: %s\nrepaired: %s", err, tc.input, repaired)
			}
		})
	}
}

func TestRepairJSONLeavesValidPayloadAlone(t *testing.T) {
	input := `{"segments":[{"index":0,"text":"a b","emotion":"calm"}]}`
	if got := RepairJSON(input); got != input {
		t.Fatalf("valid payload changed: %s", got)
	}
}
