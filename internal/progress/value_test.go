package progress_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/p-n-ai/pai-progress/internal/progress"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		in       string
		wantKind progress.Kind
		wantStr  string
	}{
		{"", progress.KindAbsent, ""},
		{"  ", progress.KindAbsent, ""},
		{"65", progress.KindNumber, "65"},
		{"65.50", progress.KindNumber, "65.5"},
		{" 72 ", progress.KindNumber, "72"},
		{"NaN", progress.KindAbsent, ""},
		{"Passed", progress.KindText, "Passed"},
		{"65/100", progress.KindText, "65/100"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := progress.ParseCell(tt.in)
			if got.Kind() != tt.wantKind {
				t.Errorf("ParseCell(%q).Kind() = %v, want %v", tt.in, got.Kind(), tt.wantKind)
			}
			if got.String() != tt.wantStr {
				t.Errorf("ParseCell(%q).String() = %q, want %q", tt.in, got.String(), tt.wantStr)
			}
		})
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		wantKind progress.Kind
	}{
		{"nil", nil, progress.KindAbsent},
		{"float", 71.5, progress.KindNumber},
		{"int", 80, progress.KindNumber},
		{"json number", json.Number("55"), progress.KindNumber},
		{"string", "pass", progress.KindText},
		{"nan", math.NaN(), progress.KindAbsent},
		{"bool", true, progress.KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := progress.ValueOf(tt.in).Kind(); got != tt.wantKind {
				t.Errorf("ValueOf(%v).Kind() = %v, want %v", tt.in, got, tt.wantKind)
			}
		})
	}
}

func TestValue_Recorded(t *testing.T) {
	if got := progress.Absent().Recorded(); got != progress.NotRecorded {
		t.Errorf("Absent().Recorded() = %q, want %q", got, progress.NotRecorded)
	}
	if got := progress.Number(65).Recorded(); got != "65" {
		t.Errorf("Number(65).Recorded() = %q, want 65", got)
	}
}

func TestValue_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want progress.Value
	}{
		{"null", `null`, progress.Absent()},
		{"number", `65`, progress.Number(65)},
		{"string", `"PASS"`, progress.Text("PASS")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v progress.Value
			if err := json.Unmarshal([]byte(tt.in), &v); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
			}
			if v != tt.want {
				t.Errorf("Unmarshal(%s) = %#v, want %#v", tt.in, v, tt.want)
			}
			out, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(out) != tt.in {
				t.Errorf("Marshal() = %s, want %s", out, tt.in)
			}
		})
	}
}

func TestValue_JSONRejectsObjects(t *testing.T) {
	var v progress.Value
	if err := json.Unmarshal([]byte(`{"score": 65}`), &v); err == nil {
		t.Fatal("Unmarshal() expected error for an object")
	}
}

func TestValue_JSONInfinity(t *testing.T) {
	out, err := json.Marshal(progress.Number(math.Inf(1)))
	if err != nil {
		t.Fatalf("Marshal(+Inf) error = %v", err)
	}
	if string(out) != `"+Inf"` {
		t.Errorf("Marshal(+Inf) = %s, want \"+Inf\"", out)
	}
}
