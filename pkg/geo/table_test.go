package geo

import (
	"fmt"
	"testing"
)

func metropolitanCodes() []string {
	codes := []string{"2A", "2B"}
	for i := 1; i <= 95; i++ {
		if i == 20 {
			continue
		}
		codes = append(codes, fmt.Sprintf("%02d", i))
	}
	return codes
}

func TestDefault_AllMetropolitanCodesKnown(t *testing.T) {
	tab := Default()
	if tab.Len() != 96 {
		t.Fatalf("Len = %d, want 96", tab.Len())
	}
	zones := map[string]bool{"Nord": true, "Sud": true, "Est": true, "Ouest": true, "Centre": true}
	for _, code := range metropolitanCodes() {
		c := tab.Classify(code)
		if !c.Known {
			t.Errorf("Classify(%q): not known", code)
			continue
		}
		if c.Region == tab.Manifest.Unknown.Region || c.Region == "" {
			t.Errorf("Classify(%q).Region = %q", code, c.Region)
		}
		if !zones[c.Zone] {
			t.Errorf("Classify(%q).Zone = %q, not one of the five zones", code, c.Zone)
		}
		if c.Name == "" {
			t.Errorf("Classify(%q).Name is empty", code)
		}
	}
}

func TestClassify_Scenarios(t *testing.T) {
	tab := Default()
	tests := []struct {
		input  string
		code   string
		region string
		zone   string
	}{
		{"1", "01", "Auvergne-Rhône-Alpes", "Centre"},
		{"2A", "2A", "Corse", "Sud"},
		{"2b", "2B", "Corse", "Sud"},
		{" 75", "75", "Île-de-France", "Centre"},
		{"59", "59", "Hauts-de-France", "Nord"},
		{"67", "67", "Grand Est", "Est"},
		{"29", "29", "Bretagne", "Ouest"},
		{"13", "13", "Provence-Alpes-Côte d'Azur", "Sud"},
		{"33", "33", "Nouvelle-Aquitaine", "Centre"},
	}
	for _, tt := range tests {
		c := tab.Classify(tt.input)
		if c.Code != tt.code || c.Region != tt.region || c.Zone != tt.zone {
			t.Errorf("Classify(%q) = {%q %q %q}, want {%q %q %q}",
				tt.input, c.Code, c.Region, c.Zone, tt.code, tt.region, tt.zone)
		}
	}
}

func TestClassify_UnknownIsSentinel(t *testing.T) {
	tab := Default()
	for _, input := range []string{"", "20", "00", "96", "971", "2C", "abc", "100", "  "} {
		c := tab.Classify(input)
		if c.Known {
			t.Errorf("Classify(%q): Known = true", input)
		}
		if c.Region != "Région inconnue" {
			t.Errorf("Classify(%q).Region = %q, want sentinel", input, c.Region)
		}
		if c.Zone != "Zone inconnue" {
			t.Errorf("Classify(%q).Zone = %q, want sentinel", input, c.Zone)
		}
	}
}

func TestZoneOf(t *testing.T) {
	tab := Default()
	tests := []struct {
		region, want string
	}{
		{"Normandie", "Nord"},
		{"provence-alpes-cote d’azur", "Sud"},
		{"Île-de-France", "Centre"},
		{"Atlantide", "Zone inconnue"},
	}
	for _, tt := range tests {
		if got := tab.ZoneOf(tt.region); got != tt.want {
			t.Errorf("ZoneOf(%q) = %q, want %q", tt.region, got, tt.want)
		}
	}
}

func TestParisZone(t *testing.T) {
	tab := Default()
	tests := []struct {
		code, want string
	}{
		{"75", "Paris"},
		{"93", "Banlieue IDF"},
		{"77", "Banlieue IDF"},
		{"69", "Autre"},
		{"", "Autre"},
	}
	for _, tt := range tests {
		if got := tab.ParisZone(tt.code); got != tt.want {
			t.Errorf("ParisZone(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestCodeByName(t *testing.T) {
	tab := Default()
	code, ok := tab.CodeByName("ARDECHE")
	if !ok || code != "07" {
		t.Errorf("CodeByName(ARDECHE) = %q, %v, want 07, true", code, ok)
	}
	if _, ok := tab.CodeByName("Nowhere"); ok {
		t.Error("CodeByName(Nowhere) found a code")
	}
}

func TestRegionsAndZones(t *testing.T) {
	tab := Default()
	if n := len(tab.Regions()); n != 13 {
		t.Errorf("Regions = %d, want 13", n)
	}
	zones := tab.Zones()
	want := []string{"Centre", "Est", "Nord", "Ouest", "Sud"}
	if fmt.Sprint(zones) != fmt.Sprint(want) {
		t.Errorf("Zones = %v, want %v", zones, want)
	}
}
