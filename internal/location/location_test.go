package location

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Location
	}{
		{"", Australia},
		{"australia", Australia},
		{"MELBOURNE", Melbourne},
		{"  Darwin ", Darwin},
		{"canberra", Canberra},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("Geelong")
	if !errors.Is(err, ErrUnknownLocation) {
		t.Fatalf("err = %v, want ErrUnknownLocation", err)
	}
}

func TestIndexColumn(t *testing.T) {
	want := "Index Numbers ;  All groups CPI ;  Hobart ;"
	if got := Hobart.IndexColumn(); got != want {
		t.Errorf("IndexColumn() = %q, want %q", got, want)
	}
	if len(All) != 9 {
		t.Errorf("len(All) = %d, want 9", len(All))
	}
}
