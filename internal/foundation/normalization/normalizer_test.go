package normalization

import "testing"

type testEnum string

const (
	testEnumAlpha testEnum = "alpha"
	testEnumBeta  testEnum = "beta"
)

func TestNormalizer_Basic(t *testing.T) {
	normalizer := NewNormalizer(map[string]testEnum{
		"alpha": testEnumAlpha,
		"Beta":  testEnumBeta,
	}, testEnumAlpha)

	tests := []struct {
		name     string
		input    string
		expected testEnum
	}{
		{"exact match", "alpha", testEnumAlpha},
		{"case insensitive", "BETA", testEnumBeta},
		{"with spaces", "  beta  ", testEnumBeta},
		{"invalid input", "invalid", testEnumAlpha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := normalizer.Normalize(tt.input); result != tt.expected {
				t.Errorf("Normalize(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizer_WithError(t *testing.T) {
	normalizer := NewNormalizer(map[string]testEnum{"alpha": testEnumAlpha}, testEnumAlpha)

	if _, err := normalizer.NormalizeWithError("ALPHA"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := normalizer.NormalizeWithError("gamma"); err == nil {
		t.Error("expected error for invalid input")
	}
	if keys := normalizer.ValidKeys(); len(keys) != 1 || keys[0] != "alpha" {
		t.Errorf("unexpected keys %v", keys)
	}
}
