package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
)

func TestNtfyNotifier_Send(t *testing.T) {
	var gotPath, gotTitle, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer srv.Close()

	n := &NtfyNotifier{Topic: "now-playing", Server: srv.URL + "/"}
	if err := n.Send(context.Background(), "Subject", "Body"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/now-playing" {
		t.Errorf("Path = %q, want /now-playing", gotPath)
	}
	if gotTitle != "Subject" {
		t.Errorf("Title = %q, want Subject", gotTitle)
	}
	if gotBody != "Body" {
		t.Errorf("Body = %q, want Body", gotBody)
	}
}

func TestNtfyNotifier_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := &NtfyNotifier{Topic: "t", Server: srv.URL}
	if err := n.Send(context.Background(), "s", "m"); err == nil {
		t.Error("Expected error for 429 response")
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var gotPath string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	n := &TelegramNotifier{BotToken: "123:abc", ChatID: "42", APIBase: srv.URL}
	if err := n.Send(context.Background(), "Subject", "Body"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("Path = %q", gotPath)
	}
	if payload["chat_id"] != "42" {
		t.Errorf("chat_id = %v, want 42", payload["chat_id"])
	}
	if text, _ := payload["text"].(string); !strings.HasPrefix(text, "*Subject*") {
		t.Errorf("text = %q, want bold subject prefix", text)
	}
}

func TestTelegramNotifier_ErrorHidesToken(t *testing.T) {
	n := &TelegramNotifier{BotToken: "secret-token", ChatID: "42", APIBase: "http://127.0.0.1:1"}
	err := n.Send(context.Background(), "s", "m")
	if err == nil {
		t.Fatal("Expected error for unreachable server")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Errorf("Error leaks bot token: %v", err)
	}
}

func TestEmailNotifier_Send(t *testing.T) {
	var gotAddr string
	var gotTo []string
	var gotMsg string
	e := &EmailNotifier{
		SMTPHost:  "smtp.example.com",
		SMTPPort:  "587",
		FromEmail: "relay@example.com",
		ToEmail:   "ops@example.com",
		sendMail: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotTo, gotMsg = addr, to, string(msg)
			return nil
		},
	}

	if err := e.Send(context.Background(), "Subject", "Body"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Subject\r\n") {
		t.Errorf("message missing subject header: %q", gotMsg)
	}
}

func TestEmailNotifier_Error(t *testing.T) {
	e := &EmailNotifier{
		sendMail: func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("connection refused")
		},
	}
	if err := e.Send(context.Background(), "s", "m"); err == nil {
		t.Error("Expected error from sendMail")
	}
}
