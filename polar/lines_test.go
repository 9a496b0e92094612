package polar

import (
	"math"
	"strings"
	"testing"
)

func TestReadLines(t *testing.T) {
	in := strings.Join([]string{
		"# angle only, or angle,x,y",
		"0",
		"",
		"3.141592653589793",
		"1.5707963267948966, 0.5, 0.25",
	}, "\n")

	samples, err := ReadLines(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadLines failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}

	if samples[0].Input[0] != -1 || samples[0].Desired[0] != 1 {
		t.Errorf("sample 0 = %+v", samples[0])
	}
	if math.Abs(samples[1].Desired[0]+1) > 1e-12 || math.Abs(samples[1].Desired[1]) > 1e-12 {
		t.Errorf("sample 1 desired = %v, want (-1, 0)", samples[1].Desired)
	}
	if samples[2].Desired[0] != 0.5 || samples[2].Desired[1] != 0.25 {
		t.Errorf("sample 2 desired = %v, want (0.5, 0.25)", samples[2].Desired)
	}
}

func TestReadLinesInvalid(t *testing.T) {
	samples, err := ReadLines(strings.NewReader("0.5\n1,2\n"))
	if err == nil {
		t.Fatal("expected error for two values")
	}
	if err.Error() != "at line 2, expected 1 or 3 values, got 2" {
		t.Errorf("unexpected error: %v", err)
	}
	if len(samples) != 1 {
		t.Errorf("expected the valid first line to be kept, got %d", len(samples))
	}

	if _, err := ReadLines(strings.NewReader("abc\n")); err == nil {
		t.Error("expected parse error")
	}
}
