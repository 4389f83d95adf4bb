package http

import "testing"

func TestValidSlug(t *testing.T) {
	valid := []string{"admin", "user_1", "some-name", "abc"}
	for _, s := range valid {
		if !ValidSlug(s) {
			t.Errorf("ValidSlug(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "ab", "has space", "semi;colon", "way_too_long_for_a_username_slug_pattern"}
	for _, s := range invalid {
		if ValidSlug(s) {
			t.Errorf("ValidSlug(%q) = true, want false", s)
		}
	}
}

func TestValidTimeOfDay(t *testing.T) {
	valid := []string{"00:00", "09:30", "23:59"}
	for _, s := range valid {
		if !ValidTimeOfDay(s) {
			t.Errorf("ValidTimeOfDay(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "24:00", "9:30", "12:60", "12-30", "12:30:00"}
	for _, s := range invalid {
		if ValidTimeOfDay(s) {
			t.Errorf("ValidTimeOfDay(%q) = true, want false", s)
		}
	}
}
