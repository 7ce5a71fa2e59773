package email

import (
	"strings"
	"testing"
)

func TestIsConfigured(t *testing.T) {
	svc := NewService(Config{})
	if svc.IsConfigured() {
		t.Error("IsConfigured() = true for empty config")
	}

	svc = NewService(Config{
		Host: "smtp.example.com",
		Port: "587",
		From: "noreply@example.com",
	})
	if !svc.IsConfigured() {
		t.Error("IsConfigured() = false for complete config")
	}
}

func TestSendEmailNotConfigured(t *testing.T) {
	svc := NewService(Config{})
	err := svc.SendEmail([]string{"admin@example.com"}, "subject", "body")
	if err == nil {
		t.Error("SendEmail() succeeded with no configuration")
	}
}

func TestPasswordResetTemplateRendersCode(t *testing.T) {
	html, err := renderTemplate(passwordResetEmailTemplate, passwordResetData{
		AppName: "Portfolio",
		Code:    "493021",
		Minutes: 10,
	})
	if err != nil {
		t.Fatalf("renderTemplate() error = %v", err)
	}
	if !strings.Contains(html, "493021") {
		t.Error("rendered email missing reset code")
	}
	if !strings.Contains(html, "10 minutes") {
		t.Error("rendered email missing expiry window")
	}
	if !strings.Contains(html, "Portfolio") {
		t.Error("rendered email missing app name")
	}
}
