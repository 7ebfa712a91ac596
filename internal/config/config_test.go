package config

import "testing"

func TestNewConfigIsValidByDefault(t *testing.T) {
	c := NewConfig("/tmp/logs")
	if err := c.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsCacheCapacityBelowMinimum(t *testing.T) {
	c := NewConfig("")
	c.CacheCapacity = MinCacheCapacity - 1
	if err := c.Validate(); err == nil {
		t.Errorf("expected an error for cache capacity below the minimum")
	}
}

func TestValidateAllowsAutoSizedCacheCapacity(t *testing.T) {
	c := NewConfig("")
	c.CacheCapacity = 0
	if err := c.Validate(); err != nil {
		t.Errorf("cache_capacity=0 (auto) should be valid, got: %v", err)
	}
}

func TestValidateRejectsNonPositiveReadAheadChunks(t *testing.T) {
	c := NewConfig("")
	c.ReadAheadChunks = 0
	if err := c.Validate(); err == nil {
		t.Errorf("expected an error for read_ahead_chunks < 1")
	}
}

func TestValidateRejectsNonPositiveMaxInFlightDecodes(t *testing.T) {
	c := NewConfig("")
	c.MaxInFlightDecodes = 0
	if err := c.Validate(); err == nil {
		t.Errorf("expected an error for max_in_flight_decodes < 1")
	}
}

func TestValidateRejectsHighWaterAtOrBelowLowWater(t *testing.T) {
	c := NewConfig("")
	c.BufferingLowWaterMs = 500
	c.BufferingHighWaterMs = 500
	if err := c.Validate(); err == nil {
		t.Errorf("expected an error when high water does not exceed low water")
	}
}

func TestValidateRejectsNonPositivePlaybackSpeed(t *testing.T) {
	c := NewConfig("")
	c.PlaybackSpeed = 0
	if err := c.Validate(); err == nil {
		t.Errorf("expected an error for a non-positive playback speed")
	}
}
