package telegram

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowMessage(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		Enabled:           true,
		MessagesPerMinute: 10,
		BurstSize:         3,
	})

	var chatID int64 = 123

	for i := 0; i < 3; i++ {
		if !limiter.AllowMessage(chatID) {
			t.Errorf("Message %d should be allowed (burst)", i+1)
		}
	}

	if limiter.AllowMessage(chatID) {
		t.Error("Message 4 should be blocked (burst exhausted)")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		Enabled:           false,
		MessagesPerMinute: 1,
		BurstSize:         1,
	})

	for i := 0; i < 100; i++ {
		if !limiter.AllowMessage(789) {
			t.Fatal("Message should be allowed when rate limiting is disabled")
		}
	}
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		Enabled:           true,
		MessagesPerMinute: 60, // 1 per second
		BurstSize:         1,
	})

	var chatID int64 = 42

	if !limiter.AllowMessage(chatID) {
		t.Error("First message should be allowed")
	}
	if limiter.AllowMessage(chatID) {
		t.Error("Second message should be blocked (burst exhausted)")
	}

	time.Sleep(1100 * time.Millisecond)

	if !limiter.AllowMessage(chatID) {
		t.Error("Message should be allowed after refill")
	}
}

func TestRateLimiter_PerChatIsolation(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		Enabled:           true,
		MessagesPerMinute: 10,
		BurstSize:         2,
	})

	limiter.AllowMessage(1)
	limiter.AllowMessage(1)

	if limiter.AllowMessage(1) {
		t.Error("chat 1 should be blocked")
	}
	if !limiter.AllowMessage(2) || !limiter.AllowMessage(2) {
		t.Error("chat 2 should have its full burst")
	}
}

func TestRateLimiter_GetRemaining(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		Enabled:           true,
		MessagesPerMinute: 20,
		BurstSize:         5,
	})

	var chatID int64 = 7

	if remaining := limiter.GetRemainingMessages(chatID); remaining != 5 {
		t.Errorf("Expected 5 remaining messages, got %d", remaining)
	}

	limiter.AllowMessage(chatID)

	if remaining := limiter.GetRemainingMessages(chatID); remaining != 4 {
		t.Errorf("Expected 4 remaining messages, got %d", remaining)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(DefaultRateLimitConfig())

	limiter.AllowMessage(1)
	limiter.AllowMessage(2)

	limiter.mu.Lock()
	initialCount := len(limiter.buckets)
	limiter.mu.Unlock()

	if initialCount != 2 {
		t.Errorf("Expected 2 buckets, got %d", initialCount)
	}

	limiter.Cleanup(0)

	limiter.mu.Lock()
	finalCount := len(limiter.buckets)
	limiter.mu.Unlock()

	if finalCount != 0 {
		t.Errorf("Expected 0 buckets after cleanup, got %d", finalCount)
	}
}
