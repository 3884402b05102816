package suffix

import "testing"

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"a.b.example.co.uk", "example.co.uk"},
		{"example.co.uk", "example.co.uk"},
		{"example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"WWW.Example.COM.", "example.com"},
		{"cdn.shop.com.au", "shop.com.au"},
		{"localhost", "localhost"},
		{"co.uk", "co.uk"},
		// Not in the allow-list: collapses onto the two-label suffix.
		{"shop.example.com.pl", "com.pl"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := RegistrableDomain(tt.host); got != tt.want {
				t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestRegistrableDomainPSL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"a.b.example.co.uk", "example.co.uk"},
		{"shop.example.com.pl", "example.com.pl"},
		{"www.example.com", "example.com"},
		// Bare public suffix is rejected by the list; falls back.
		{"com", "com"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := RegistrableDomainPSL(tt.host); got != tt.want {
				t.Errorf("RegistrableDomainPSL(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestForMode(t *testing.T) {
	for _, m := range []Mode{"", ModeApprox, ModePSL} {
		if _, err := ForMode(m); err != nil {
			t.Errorf("ForMode(%q) error = %v", m, err)
		}
	}
	if _, err := ForMode("full"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestMultiLabel_NoDuplicates(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range MultiLabel {
		if seen[s] {
			t.Errorf("duplicate suffix: %s", s)
		}
		seen[s] = true
	}
}
