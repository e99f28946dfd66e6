package storage

import "testing"

func TestResolveEndpoint(t *testing.T) {
	cases := []struct {
		name       string
		endpoint   string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{"storage subdomain rewritten", "storage.example.com", false, "storage.example.com/storage/v1/s3", true},
		{"storage subdomain with scheme", "https://storage.example.com", false, "storage.example.com/storage/v1/s3", true},
		{"explicit https used verbatim", "https://s3.example.com", false, "s3.example.com", true},
		{"explicit http used verbatim", "http://localhost:9000", true, "localhost:9000", false},
		{"bare host falls back to useSSL true", "localhost:9000", true, "localhost:9000", true},
		{"bare host falls back to useSSL false", "localhost:9000", false, "localhost:9000", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			host, secure := ResolveEndpoint(c.endpoint, c.useSSL)
			if host != c.wantHost || secure != c.wantSecure {
				t.Errorf("ResolveEndpoint(%q, %v) = (%q, %v), want (%q, %v)",
					c.endpoint, c.useSSL, host, secure, c.wantHost, c.wantSecure)
			}
		})
	}
}
