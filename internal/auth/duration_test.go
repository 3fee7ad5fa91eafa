package auth

import (
	"testing"
	"time"
)

func TestParseExpirationDurationNever(t *testing.T) {
	got, err := ParseExpirationDuration("never")
	if err != nil {
		t.Fatalf("ParseExpirationDuration: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil expiry for never, got %v", got)
	}
}

func TestParseExpirationDurationDays(t *testing.T) {
	got, err := ParseExpirationDuration("30d")
	if err != nil {
		t.Fatalf("ParseExpirationDuration: %v", err)
	}
	if got == nil {
		t.Fatal("expected an expiry time")
	}
	want := time.Now().Add(30 * 24 * time.Hour)
	if diff := got.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry off by %v", diff)
	}
}

func TestParseExpirationDurationGoSyntax(t *testing.T) {
	got, err := ParseExpirationDuration("90m")
	if err != nil {
		t.Fatalf("ParseExpirationDuration: %v", err)
	}
	if got == nil {
		t.Fatal("expected an expiry time")
	}
}

func TestParseExpirationDurationInvalid(t *testing.T) {
	if _, err := ParseExpirationDuration("soon"); err == nil {
		t.Error("expected error for unparseable input")
	}
}
