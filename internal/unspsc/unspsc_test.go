package unspsc

import (
	"testing"

	"github.com/mvargas/tender-scout/internal/models"
)

func TestSameCategory(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"same category different endings", "80111600", "80111699", true},
		{"different category", "80111600", "80121600", false},
		{"prefixed code normalizes before comparison", "V1.80111600", "80111622", true},
		{"both prefixed", "V1.80111600", "V1.80119999", true},
		{"short code never matches", "801", "80111600", false},
		{"both short", "80", "80", false},
		{"empty codes", "", "", false},
		{"exact equality", "80111600", "80111600", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameCategory(tt.a, tt.b); got != tt.want {
				t.Errorf("SameCategory(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("V1.80111600"); got != "80111600" {
		t.Errorf("Normalize(V1.80111600) = %q, want 80111600", got)
	}
	if got := Normalize("  80111600 "); got != "80111600" {
		t.Errorf("Normalize with whitespace = %q, want 80111600", got)
	}
}

func TestCategory(t *testing.T) {
	if got := Category("80111600"); got != "8011" {
		t.Errorf("Category = %q, want 8011", got)
	}
	if got := Category("801"); got != "" {
		t.Errorf("Category of short code = %q, want empty", got)
	}
}

func TestFromListing(t *testing.T) {
	listing := models.TenderListing{CategoryCode: "V1.80111600"}
	codes := FromListing(listing)
	if len(codes) != 1 || codes[0] != "80111600" {
		t.Fatalf("FromListing = %v, want [80111600]", codes)
	}

	if codes := FromListing(models.TenderListing{CategoryCode: "V1."}); len(codes) != 0 {
		t.Fatalf("FromListing with empty code = %v, want none", codes)
	}
}
