// internal/tokens/meter_test.go
package tokens

import (
	"testing"

	"github.com/user/admitchat/internal/types"
)

func TestMeterFallsBackForUnknownModel(t *testing.T) {
	m, err := NewMeter("not-a-real-model")
	if err != nil {
		t.Fatal(err)
	}
	if m.Count("hello world") == 0 {
		t.Error("expected non-zero token count")
	}
}

func TestMeterCountMessages(t *testing.T) {
	m, err := NewMeter("gpt-4")
	if err != nil {
		t.Fatal(err)
	}

	msgs := []types.Message{
		{Role: types.RoleUser, Content: "What is velocity?"},
		{Role: types.RoleAssistant, Content: "Velocity is the rate of change of position."},
	}
	total := m.CountMessages(msgs)
	if total <= 0 {
		t.Fatalf("expected positive total, got %d", total)
	}
	if total != m.Count(msgs[0].Content)+m.Count(msgs[1].Content) {
		t.Error("total does not equal sum of parts")
	}

	if m.CountMessages(nil) != 0 {
		t.Error("expected zero tokens for empty sequence")
	}
}
