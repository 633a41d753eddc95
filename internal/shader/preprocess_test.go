package shader

import (
	"errors"
	"strings"
	"testing"
)

func TestPreprocessConditionals(t *testing.T) {
	src := `before
#if defined(YUV_PATTERN_UV)
uv
#elif defined(YUV_PATTERN_VU)
vu
#else
none
#endif
after`

	tests := []struct {
		name    string
		defines []string
		want    string
	}{
		{"first branch", []string{"#define YUV_PATTERN_UV"}, "before\nuv\nafter\n"},
		{"elif branch", []string{"#define YUV_PATTERN_VU"}, "before\nvu\nafter\n"},
		{"else branch", nil, "before\nnone\nafter\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Preprocess(src, tt.defines, nil)
			if err != nil {
				t.Fatalf("Preprocess: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreprocessNested(t *testing.T) {
	src := `#ifdef A
#ifndef B
a-not-b
#else
a-and-b
#endif
#endif
#if defined(A) && !defined(B)
and
#endif
#if defined(B) || defined(A)
or
#endif`
	got, err := Preprocess(src, []string{"#define A"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := "a-not-b\nand\nor\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Inner branches stay inactive when the outer condition fails.
	got, err = Preprocess(src, []string{"#define B"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := "or\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPreprocessMacroSubstitution(t *testing.T) {
	defines := []string{
		"#define YUV2RGB_MATRIX 1.0, 0.0, 0.0",
		"#define RGB_PATTERN bgr",
		"#define OUTER INNER + 1",
		"#define INNER 2",
		"#define SELF SELF",
	}
	src := `let m = mat(YUV2RGB_MATRIX);
let c = t.RGB_PATTERN;
let x = OUTER;
let keep = YUV2RGB_MATRIX_X + RGB_PATTERNS + 1RGB_PATTERN;
let s = SELF;`
	got, err := Preprocess(src, defines, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := `let m = mat(1.0, 0.0, 0.0);
let c = t.bgr;
let x = 2 + 1;
let keep = YUV2RGB_MATRIX_X + RGB_PATTERNS + 1RGB_PATTERN;
let s = SELF;
`
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestPreprocessInclude(t *testing.T) {
	files := map[string]string{
		"common.wgsl": "struct Params {}\n#define SHARED 1",
		"loop.wgsl":   "#include \"loop.wgsl\"\nloop",
	}
	resolve := func(name string) (string, error) {
		src, ok := files[name]
		if !ok {
			return "", errors.New("not found")
		}
		return src, nil
	}

	got, err := Preprocess("#include \"common.wgsl\"\n#include \"common.wgsl\"\nx = SHARED", nil, resolve)
	if err != nil {
		t.Fatal(err)
	}
	if want := "struct Params {}\nx = 1\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got, err = Preprocess("#include \"loop.wgsl\"", nil, resolve)
	if err != nil {
		t.Fatal(err)
	}
	if want := "loop\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := Preprocess("#include \"missing.wgsl\"", nil, resolve); err == nil {
		t.Error("missing include should fail")
	}
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"error directive", "#error \"order not defined\"", "#error order not defined"},
		{"unterminated", "#ifdef A\nx", "unterminated conditional"},
		{"stray endif", "#endif", "#endif without #if"},
		{"stray else", "#else", "#else without #if"},
		{"duplicate else", "#ifdef A\n#else\n#else\n#endif", "duplicate #else"},
		{"elif after else", "#ifdef A\n#else\n#elif defined(B)\n#endif", "#elif after #else"},
		{"unknown directive", "#pragma once", "unknown directive #pragma"},
		{"bad condition", "#if A > 1\n#endif", "unsupported condition"},
		{"bad define", "#define 1X", "invalid macro name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess(tt.src, nil, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestPreprocessErrorInInactiveRegionIgnored(t *testing.T) {
	got, err := Preprocess("#ifdef MISSING\n#error \"unreachable\"\n#endif\nok", nil, nil)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if got != "ok\n" {
		t.Errorf("got %q", got)
	}
}

func TestPreprocessErrorReportsLine(t *testing.T) {
	_, err := Preprocess("a\nb\n#bogus", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "<source>:3:") {
		t.Errorf("error = %v, want line 3", err)
	}
}
