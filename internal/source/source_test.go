package source

import (
	"errors"
	"testing"

	"fbzone/internal/media"
)

func TestParseVideo(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantURL string
		wantID  string
	}{
		{"share link", "https://www.facebook.com/share/v/1axgDVeCjG/", "https://www.facebook.com/share/v/1axgDVeCjG/", "1axgDVeCjG"},
		{"share link strips query", "https://www.facebook.com/share/v/1axgDVeCjG/?mibextid=abc", "https://www.facebook.com/share/v/1axgDVeCjG/", "1axgDVeCjG"},
		{"watch keeps v", "https://www.facebook.com/watch/?v=1234567890&ref=sharing", "https://www.facebook.com/watch/?v=1234567890", "1234567890"},
		{"watch without slash", "https://facebook.com/watch?v=42", "https://www.facebook.com/watch/?v=42", "42"},
		{"videos path", "https://m.facebook.com/someone/videos/987654321/", "https://www.facebook.com/someone/videos/987654321/", "987654321"},
		{"reel", "facebook.com/reel/555111222", "https://www.facebook.com/reel/555111222", "555111222"},
		{"fragment dropped", "https://web.facebook.com/reel/77#comments", "https://www.facebook.com/reel/77", "77"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := ParseVideo(tt.input)
			if err != nil {
				t.Fatalf("ParseVideo(%q) error: %v", tt.input, err)
			}
			if src.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", src.URL, tt.wantURL)
			}
			if src.ContentID != tt.wantID {
				t.Errorf("ContentID = %q, want %q", src.ContentID, tt.wantID)
			}
			if src.Kind != media.VideoSource {
				t.Errorf("Kind = %v, want video", src.Kind)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"other host", "https://example.com/watch/?v=1"},
		{"lookalike host", "https://facebook.com.evil.net/reel/1"},
		{"no pattern", "https://www.facebook.com/groups/123/posts/456"},
		{"profile id zero", "https://www.facebook.com/profile.php?id=0"},
		{"reserved path", "https://www.facebook.com/login/"},
		{"watch without id", "https://www.facebook.com/watch/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) should fail", tt.input)
			}
			if !errors.Is(err, media.ErrInvalidSource) {
				t.Errorf("error %v should wrap ErrInvalidSource", err)
			}
			var invalid *media.InvalidSourceError
			if !errors.As(err, &invalid) {
				t.Errorf("error %T should be *InvalidSourceError", err)
			}
		})
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		input   string
		wantURL string
		wantID  string
	}{
		{"https://www.facebook.com/profile.php?id=100000000000001&sk=photos", "https://www.facebook.com/profile.php?id=100000000000001", "100000000000001"},
		{"https://www.facebook.com/10AM02/", "https://www.facebook.com/10AM02/", "10AM02"},
		{"facebook.com/jane.doe", "https://www.facebook.com/jane.doe/", "jane.doe"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			src, err := ParseProfile(tt.input)
			if err != nil {
				t.Fatalf("ParseProfile(%q) error: %v", tt.input, err)
			}
			if src.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", src.URL, tt.wantURL)
			}
			if src.ContentID != tt.wantID {
				t.Errorf("ContentID = %q, want %q", src.ContentID, tt.wantID)
			}
			if src.Kind != media.ProfileSource {
				t.Errorf("Kind = %v, want profile", src.Kind)
			}
		})
	}
}

func TestParsePrefersVideo(t *testing.T) {
	src, err := Parse("https://www.facebook.com/reel/123456789012")
	if err != nil {
		t.Fatal(err)
	}
	if src.Kind != media.VideoSource {
		t.Errorf("reel URL parsed as %v", src.Kind)
	}
	if _, err := ParseProfile("https://www.facebook.com/reel/123"); err == nil {
		t.Error("ParseProfile should reject a reel URL")
	}
}

func TestIsLongID(t *testing.T) {
	if IsLongID("1axgDVeCjG") {
		t.Error("10 characters is not long")
	}
	if !IsLongID("12345678901") {
		t.Error("11 characters is long")
	}
}
