package agent

import (
	"bufio"
	"encoding/json"
	"io"
)

// StreamHandler handles parsed events from the agent's output stream
type StreamHandler interface {
	OnToolUse(name string)
	OnText(text string)
	OnResult(text string)
}

// StreamEvent represents a single event from claude's stream-json output
type StreamEvent struct {
	Type    string          `json:"type"`
	Message *MessageContent `json:"message,omitempty"`
	Result  string          `json:"result,omitempty"`
}

// MessageContent represents the message field in stream events
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock represents a content block (text or tool_use)
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"` // for tool_use
}

// ParseStream reads the agent's stream-json output and calls the handler
func ParseStream(reader io.Reader, handler StreamHandler) error {
	scanner := bufio.NewScanner(reader)
	// Increase buffer size for large JSON lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			// Skip malformed JSON lines
			continue
		}

		switch event.Type {
		case "assistant":
			if event.Message == nil {
				continue
			}
			for _, content := range event.Message.Content {
				switch content.Type {
				case "tool_use":
					handler.OnToolUse(content.Name)
				case "text":
					handler.OnText(content.Text)
				}
			}
		case "result":
			handler.OnResult(event.Result)
		}
	}

	return scanner.Err()
}

// Collector records agent text into a transcript while forwarding events
// to an optional inner handler.
type Collector struct {
	Transcript *Transcript
	Inner      StreamHandler
}

func (c *Collector) OnToolUse(name string) {
	if c.Inner != nil {
		c.Inner.OnToolUse(name)
	}
}

func (c *Collector) OnText(text string) {
	c.Transcript.Append(text)
	if c.Inner != nil {
		c.Inner.OnText(text)
	}
}

func (c *Collector) OnResult(text string) {
	c.Transcript.Append(text)
	if c.Inner != nil {
		c.Inner.OnResult(text)
	}
}
