package branches

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		location string
		name     string
		address  string
	}{
		{"TlnRK Kadrioru", "TKR Kadriorg", "Lydia Koidula 12a, Tallinn"},
		{"TlnRK, Väike-Õismäe laenutus", "TKR Väike-Õismäe", "Õismäe tee 115a, Tallinn"},
		{"TlnRK: Nõmme", "TKR Nõmme", "Raudtee 68, Tallinn"},
		{"TlnRK Tundmatu", "Tallinna Keskraamatukogu", "Tallinn"},
		{"TlnRK", "Tallinna Keskraamatukogu – Peahoone", "Estonia pst 8, Tallinn, Estonia"},
		{"RaRa kojulaenutus", "Eesti Rahvusraamatukogu", "Tõnismägi 2, Tallinn, Estonia"},
		{"Tartu LR lastekirjandus", "Tartu Linnaraamatukogu", "Kompanii 3/5, Tartu, Estonia"},
		{"Keegi Muu", "Keegi Muu", ""},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			p := Resolve(tt.location)
			if p.Name != tt.name || p.Address != tt.address {
				t.Errorf("Expected %s / %s, got %s / %s", tt.name, tt.address, p.Name, p.Address)
			}
		})
	}
}

func TestMarkerColour(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "red"}, {2, "orange"}, {3, "orange"}, {4, "beige"}, {7, "beige"}, {8, "green"},
	}
	for _, tt := range tests {
		if got := MarkerColour(tt.n); got != tt.want {
			t.Errorf("Expected %s for %d, got %s", tt.want, tt.n, got)
		}
	}
}
