package executor

import (
	"encoding/json"
	"strings"

	"github.com/AbdouGG/Deep-Code/internal/transcript"
)

const (
	ConnectedNotice    = "Connected to execution server"
	DisconnectedNotice = "Disconnected from execution server"
	TransportErrorLine = "WebSocket error occurred"
	ErrorPrefix        = "❌ Error: "
	ResultPrefix       = "✨ "
)

// Outcome is the transcript rendering of one inbound message.
type Outcome struct {
	Kind transcript.Kind
	Line string
}

// Classify sorts an inbound frame into an execution error, a result, or raw
// output. Frames that are not JSON are shown verbatim.
func Classify(raw string) Outcome {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Outcome{Kind: transcript.KindRaw, Line: raw}
	}
	if obj, ok := v.(map[string]any); ok {
		if e, ok := obj["error"]; ok && truthy(e) {
			return Outcome{Kind: transcript.KindError, Line: ErrorPrefix + render(e)}
		}
		for _, key := range []string{"result", "output"} {
			if r, ok := obj[key]; ok {
				return Outcome{Kind: transcript.KindResult, Line: ResultPrefix + render(r)}
			}
		}
		return Outcome{Kind: transcript.KindResult, Line: ResultPrefix + strings.TrimSpace(raw)}
	}
	return Outcome{Kind: transcript.KindResult, Line: ResultPrefix + render(v)}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return true
	}
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
