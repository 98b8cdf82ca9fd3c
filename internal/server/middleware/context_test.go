package middleware

import (
	"context"
	"testing"
)

func TestWithRequest_SetsValues(t *testing.T) {
	ctx := WithRequest(context.Background(), "req-1", "10.0.0.1")

	requestID, ok := GetRequestID(ctx)
	if !ok {
		t.Fatal("GetRequestID should return true")
	}
	if requestID != "req-1" {
		t.Errorf("request_id = %q, want %q", requestID, "req-1")
	}
	if ip := ClientIP(ctx); ip != "10.0.0.1" {
		t.Errorf("ClientIP = %q, want %q", ip, "10.0.0.1")
	}
}

func TestGetRequestID_ReturnsFalseWhenNotSet(t *testing.T) {
	requestID, ok := GetRequestID(context.Background())
	if ok {
		t.Error("GetRequestID should return false when not set")
	}
	if requestID != "" {
		t.Errorf("request_id = %q, want empty string", requestID)
	}
}

func TestWithCaller(t *testing.T) {
	ctx := WithCaller(context.Background(), CallerInternal)
	caller, ok := GetCaller(ctx)
	if !ok || caller != CallerInternal {
		t.Errorf("GetCaller = %q, %v; want %q, true", caller, ok, CallerInternal)
	}
	if _, ok := GetCaller(context.Background()); ok {
		t.Error("GetCaller should return false when not set")
	}
}

func TestClientIP_Unknown(t *testing.T) {
	if ip := ClientIP(context.Background()); ip != "unknown" {
		t.Errorf("ClientIP = %q, want unknown", ip)
	}
	if ip := ClientIP(WithRequest(context.Background(), "req-1", "")); ip != "unknown" {
		t.Errorf("ClientIP with empty value = %q, want unknown", ip)
	}
}
