package llm

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaName is the response_format schema name sent with every request.
const SchemaName = "impl_bodies"

// BodiesSchema is the JSON schema of a structured answer.
var BodiesSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "bodies": {
      "type": "array",
      "items": {"type": "string"}
    }
  },
  "required": ["bodies"],
  "additionalProperties": false
}`)

var bodiesSchema = mustSchema(BodiesSchema)

func mustSchema(raw json.RawMessage) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(err)
	}
	return s
}

// ParseBodies extracts the bodies array from message content. Content
// wrapped in a markdown fence is unwrapped first. An error means the content
// is not a bodies object; callers then treat the content as one fragment.
func ParseBodies(content string) ([]string, error) {
	text := StripCodeFence(content)
	if !json.Valid([]byte(text)) {
		return nil, errors.New("content is not JSON")
	}

	result, err := bodiesSchema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, errors.Wrap(err, "validate bodies schema")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.Newf("content does not match bodies schema: %s", strings.Join(msgs, "; "))
	}

	var out struct {
		Bodies []string `json:"bodies"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, errors.Wrap(err, "decode bodies")
	}
	return out.Bodies, nil
}

// StripCodeFence removes a surrounding markdown code fence (```lang ... ```)
// and trims whitespace. Text without a fence is only trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string (```go, ```json)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
