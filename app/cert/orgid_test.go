package cert

import (
	"errors"
	"testing"

	"github.com/botsman/psd2cert/app/certerr"
)

func TestNewOrganizationID(t *testing.T) {
	tests := []struct {
		name             string
		entityNatRefCode string
		country          string
		authority        string
		want             string
	}{
		{
			name:             "Malta example with spaces and dash",
			entityNatRefCode: "C 102960",
			country:          "MT",
			authority:        "MFSA",
			want:             "PSDMT-MFSA-C102960",
		},
		{
			name:             "Finland example",
			entityNatRefCode: "29884997",
			country:          "FI",
			authority:        "FINFSA",
			want:             "PSDFI-FINFSA-29884997",
		},
		{
			name:             "With dash in nat ref code",
			entityNatRefCode: "0111027-9",
			country:          "FI",
			authority:        "FINFSA",
			want:             "PSDFI-FINFSA-01110279",
		},
		{
			name:             "With spaces and dashes",
			entityNatRefCode: "A B-C D-E F",
			country:          "DE",
			authority:        "BAFIN",
			want:             "PSDDE-BAFIN-ABCDEF",
		},
		{
			name:             "Empty nat ref code",
			entityNatRefCode: "",
			country:          "DE",
			authority:        "BAFIN",
			want:             "PSDDE-BAFIN-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewOrganizationID(tt.entityNatRefCode, tt.country, tt.authority).String()
			if got != tt.want {
				t.Errorf("NewOrganizationID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseOrganizationID(t *testing.T) {
	tests := []struct {
		in   string
		want OrganizationID
	}{
		{"PSDGB-FCA-791622", OrganizationID{Scheme: "PSD", Country: "GB", NCA: "FCA", NationalID: "791622"}},
		{"PSDFI-FINFSA-1234567-8", OrganizationID{Scheme: "PSD", Country: "FI", NCA: "FINFSA", NationalID: "1234567-8"}},
		{"PSDDE-BAFIN-", OrganizationID{Scheme: "PSD", Country: "DE", NCA: "BAFIN"}},
		{"VATBE-0876543210", OrganizationID{Scheme: "VAT", Country: "BE", NationalID: "0876543210"}},
		{"NTRFI-1234567-8", OrganizationID{Scheme: "NTR", Country: "FI", NationalID: "1234567-8"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrganizationID(tt.in)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseOrganizationID() = %+v, want %+v", got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %v, want %v", got.String(), tt.in)
			}
		})
	}
}

func TestParseOrganizationIDMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"PSDGB",
		"PSDFIN-FINFSA-1234567-8",
		"psdgb-FCA-791622",
		"PSDGB-791622",
		"PSDGB--791622",
		"12345678",
	} {
		_, err := ParseOrganizationID(in)
		if !errors.Is(err, certerr.ErrMalformedOrganizationIdentifier) {
			t.Errorf("ParseOrganizationID(%q) error = %v, want %v", in, err, certerr.ErrMalformedOrganizationIdentifier)
		}
	}
}
