package alert

import (
	"context"
	"testing"

	"github.com/wneessen/go-mail"
)

func TestSMTPMailer_Configured(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
		want bool
	}{
		{"host and sender", SMTPConfig{Host: "smtp.example.com", From: "alerts@example.com"}, true},
		{"missing sender", SMTPConfig{Host: "smtp.example.com"}, false},
		{"missing host", SMTPConfig{From: "alerts@example.com"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSMTPMailer(tt.cfg).Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSMTPMailer_UnconfiguredFailsWithoutDialing(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{})
	if err := m.Verify(context.Background()); err == nil {
		t.Error("Verify should fail when unconfigured")
	}
	err := m.Send(context.Background(), Message{To: "soc@example.com", Text: "x"})
	te, ok := err.(*TransportError)
	if !ok {
		t.Fatalf("Send error = %T, want *TransportError", err)
	}
	if te.Op != "send" {
		t.Errorf("Op = %q, want %q", te.Op, "send")
	}
}

func TestImportance(t *testing.T) {
	tests := []struct {
		priority string
		want     mail.Importance
	}{
		{"low", mail.ImportanceLow},
		{"medium", mail.ImportanceNormal},
		{"high", mail.ImportanceHigh},
		{"critical", mail.ImportanceUrgent},
		{"", mail.ImportanceNormal},
	}
	for _, tt := range tests {
		if got := importance(tt.priority); got != tt.want {
			t.Errorf("importance(%q) = %v, want %v", tt.priority, got, tt.want)
		}
	}
}
