package mediaurl

import "testing"

func TestPhotoRoundTrip(t *testing.T) {
	key := "profile_photo/3f/3f2504e0-4f89-11d3-9a0c-0305e82c3301.jpg"

	for _, base := range []string{"", "http://localhost:4040", "https://accounts.example.com/ "} {
		u := Photo(base, key)
		got, ok := ParseKey(u)
		if !ok || got != key {
			t.Fatalf("ParseKey(Photo(%q)) = %q, %v; want %q", base, got, ok, key)
		}
	}
}

func TestParseKeyRejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"https://cdn.example.com/avatar.png",
		"/media/",
		"/media/../secrets",
		"/media//etc/passwd",
	} {
		if key, ok := ParseKey(raw); ok {
			t.Fatalf("ParseKey(%q) = %q, want rejection", raw, key)
		}
	}
}
