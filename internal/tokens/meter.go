// internal/tokens/meter.go
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/admitchat/internal/types"
)

// Meter counts tokens of chat exchanges so thread listings can show usage.
type Meter struct {
	tokenizer *tiktoken.Tiktoken
}

// NewMeter creates a meter using the tokenizer for the given model name.
func NewMeter(model string) (*Meter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Meter{tokenizer: enc}, nil
}

// Count returns the token count for a string.
func (m *Meter) Count(text string) int {
	return len(m.tokenizer.Encode(text, nil, nil))
}

// CountMessages returns the total token count of a message sequence.
func (m *Meter) CountMessages(msgs []types.Message) int {
	total := 0
	for _, msg := range msgs {
		total += m.Count(msg.Content)
	}
	return total
}
