package format

import "testing"

func TestFourCCByteOrder(t *testing.T) {
	if NV12.FourCC != 0x3231564e {
		t.Errorf("NV12 fourcc = 0x%08x, want 0x3231564e", NV12.FourCC)
	}
	if YUYV.FourCC != 0x56595559 {
		t.Errorf("YUYV fourcc = 0x%08x, want 0x56595559", YUYV.FourCC)
	}
}

func TestCatalogUnique(t *testing.T) {
	seen := make(map[PixelFormat]string)
	for _, e := range catalog {
		if prev, ok := seen[e.format]; ok {
			t.Errorf("%s duplicates %s", e.name, prev)
		}
		seen[e.format] = e.name
	}
	if got := len(All()); got != 30 {
		t.Errorf("len(All()) = %d, want 30", got)
	}
}

func TestPackedRawDistinctFromModifierless(t *testing.T) {
	plain := PixelFormat{FourCC: SBGGR10CSI2P.FourCC}
	if plain == SBGGR10CSI2P {
		t.Fatal("modifier must distinguish packed formats")
	}
	if got := plain.String(); got != "BG10" {
		t.Errorf("String() = %q, want BG10", got)
	}
}

func TestStringParse(t *testing.T) {
	for _, f := range All() {
		name := f.String()
		got, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", name, err)
		}
		if got != f {
			t.Errorf("Parse(%q) = %v, want %v", name, got, f)
		}
	}
	if got, err := Parse("nv12"); err != nil || got != NV12 {
		t.Errorf("Parse(nv12) = %v, %v", got, err)
	}
	if _, err := Parse("MJPEG"); err == nil {
		t.Error("Parse(MJPEG) should fail")
	}
}

func TestStringUnknown(t *testing.T) {
	tests := []struct {
		f    PixelFormat
		want string
	}{
		{PixelFormat{}, "<invalid>"},
		{PixelFormat{FourCC: fourcc('M', 'J', 'P', 'G')}, "MJPG"},
		{PixelFormat{FourCC: fourcc('X', 'R', '2', '4'), Modifier: 2}, "XR24-0x0000000000000002"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
