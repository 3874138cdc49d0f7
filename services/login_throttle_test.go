package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"menu-telegram/db"
)

func TestCooldownSecondsForFailCount(t *testing.T) {
	tests := []struct {
		failCount int
		want      int
	}{
		{0, 1},   // 2^0=1
		{1, 2},   // 2^1=2
		{2, 4},   // 2^2=4
		{3, 8},   // 2^3=8
		{4, 16},  // 2^4=16
		{5, 30},  // 2^5=32 -> cap 30
		{6, 30},  // 2^6=64 -> cap 30
		{70, 30}, // no overflow
	}
	for _, tt := range tests {
		got := CooldownSecondsForFailCount(tt.failCount)
		if got != tt.want {
			t.Errorf("CooldownSecondsForFailCount(%d) = %d, want %d", tt.failCount, got, tt.want)
		}
	}
}

func TestRemaining(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		until time.Time
		want  time.Duration
	}{
		{now.Add(-time.Second), 0},
		{now, 0},
		{now.Add(300 * time.Millisecond), time.Second},
		{now.Add(2 * time.Second), 3 * time.Second},
		{now.Add(2500 * time.Millisecond), 3 * time.Second},
	}
	for _, tt := range tests {
		if got := remaining(now, tt.until); got != tt.want {
			t.Errorf("remaining(%v) = %v, want %v", tt.until.Sub(now), got, tt.want)
		}
	}
}

func TestThrottledErrorMessage(t *testing.T) {
	var err error = &ThrottledError{Wait: 4200 * time.Millisecond}
	var te *ThrottledError
	if !errors.As(err, &te) || te.Wait != 4200*time.Millisecond {
		t.Fatalf("errors.As failed for %v", err)
	}
	if got := err.Error(); got != "too many attempts, retry in 4s" {
		t.Errorf("Error() = %q", got)
	}
}

// Integration tests for throttle (require DB). Skip without a pool or with -short.
func TestLoginThrottle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping throttle integration test in short mode")
	}
	if !db.Enabled() {
		t.Skip("skipping throttle integration test: no DB pool")
	}
	ctx := context.Background()
	const testUserID int64 = 999999997
	role := ThrottleRoleOwner

	defer func() {
		_ = RecordLoginSuccess(ctx, testUserID, role)
	}()

	_ = RecordLoginSuccess(ctx, testUserID, role)
	wait, err := LoginThrottleWait(ctx, testUserID, role)
	if err != nil {
		t.Fatalf("LoginThrottleWait after success: %v", err)
	}
	if wait != 0 {
		t.Errorf("after success: wait = %v, want 0", wait)
	}

	if err := RecordLoginFailed(ctx, testUserID, role); err != nil {
		t.Fatalf("RecordLoginFailed: %v", err)
	}
	wait, err = LoginThrottleWait(ctx, testUserID, role)
	if err != nil {
		t.Fatalf("LoginThrottleWait after fail: %v", err)
	}
	first := time.Duration(CooldownSecondsForFailCount(1)+1) * time.Second
	if wait <= 0 || wait > first {
		t.Errorf("after one fail: wait = %v, want (0, %v]", wait, first)
	}

	for i := 0; i < 8; i++ {
		_ = RecordLoginFailed(ctx, testUserID, role)
	}
	wait, _ = LoginThrottleWait(ctx, testUserID, role)
	if wait > (ThrottleCooldownCapSeconds+1)*time.Second {
		t.Errorf("after 9 fails: wait = %v, want <= cap", wait)
	}
}
