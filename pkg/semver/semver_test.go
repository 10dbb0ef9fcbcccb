package semver

import "testing"

func TestCheckSpecVersion_Supported(t *testing.T) {
	if err := CheckSpecVersion("1.0.31"); err != nil {
		t.Errorf("expected 1.0.31 to be supported: %v", err)
	}
}

func TestCheckSpecVersion_Unsupported(t *testing.T) {
	if err := CheckSpecVersion("2.0.0"); err == nil {
		t.Error("expected 2.0.0 to be rejected")
	}
}

func TestCheckSpecVersion_Invalid(t *testing.T) {
	if err := CheckSpecVersion("not-a-version"); err == nil {
		t.Error("expected invalid version string to error")
	}
}

func TestCompare_NumericNotLexical(t *testing.T) {
	cmp, err := Compare("1.0.9", "1.0.10")
	if err != nil {
		t.Fatal(err)
	}
	if cmp >= 0 {
		t.Errorf("expected 1.0.9 < 1.0.10 numerically, got cmp=%d", cmp)
	}
}
