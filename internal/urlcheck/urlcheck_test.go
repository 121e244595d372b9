package urlcheck

import "testing"

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"http with port", "http://rm.example.com:8088/", true},
		{"https no path", "https://rm.example.com", true},
		{"ipv4", "http://10.0.0.1:8088", true},
		{"ipv6", "http://[::1]:8088/cluster", true},
		{"maprfs scheme", "maprfs://cluster/path", true},

		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"untrimmed", "  http://rm.example.com:8088/ ", false},
		{"no scheme", "rm.example.com:8088", false},
		{"relative path", "/cluster/apps", false},
		{"scheme only", "http://", false},
		{"trailing colon", "http://host:", false},
		{"garbage", "not a url", false},
		{"html error page", "<html><body>503</body></html>", false},
		{"mailto has no host", "mailto:ops@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.in); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	got, ok := Normalize("  http://rm.example.com:8088/  \n")
	if !ok {
		t.Fatal("Normalize() ok = false, want true")
	}
	if got != "http://rm.example.com:8088/" {
		t.Errorf("Normalize() = %q, want %q", got, "http://rm.example.com:8088/")
	}

	got, ok = Normalize("\n")
	if ok {
		t.Error("Normalize(newline) ok = true, want false")
	}
	if got != "" {
		t.Errorf("Normalize(newline) = %q, want empty", got)
	}
}
