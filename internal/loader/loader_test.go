package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/fieldmap/internal/jsondoc"
)

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"data.json", false},
		{"SCHEMA.JSON", false},
		{"schema.yaml", false},
		{"schema.yml", false},
		{"rows.csv", false},
		{"notes.txt", true},
		{"noext", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q): err=%v, wantErr=%v", tt.filename, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrUnsupported) {
			t.Errorf("ForFile(%q): expected ErrUnsupported, got %v", tt.filename, err)
		}
		if IsSupportedExtension(tt.filename) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) disagrees with ForFile", tt.filename)
		}
	}
}

func TestJSONLoader(t *testing.T) {
	v, err := LoadBytes([]byte(`{"b": 1, "a": [true, null]}`), "doc.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := marshal(t, v); got != `{"b":1,"a":[true,null]}` {
		t.Errorf("unexpected document %s", got)
	}

	_, err = LoadBytes([]byte(`{"b": `), "broken.json")
	if err == nil || !strings.Contains(err.Error(), "broken.json") {
		t.Errorf("expected error naming the file, got %v", err)
	}
}

func TestYAMLLoader_OrderAndTypes(t *testing.T) {
	input := `
name: Alice
age: 30
ratio: 0.5
active: yes
nothing: ~
address:
  zip: "75001"
  city: Paris
tags: [a, b]
`
	v, err := LoadBytes([]byte(input), "person.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"name":"Alice","age":30,"ratio":0.5,"active":"yes","nothing":null,"address":{"zip":"75001","city":"Paris"},"tags":["a","b"]}`
	if got := marshal(t, v); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestYAMLLoader_Anchors(t *testing.T) {
	input := `
base: &base
  city: Paris
home: *base
`
	v, err := LoadBytes([]byte(input), "a.yml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	home, _ := v.(jsondoc.Object).Get("home")
	if got := marshal(t, home); got != `{"city":"Paris"}` {
		t.Errorf("expected alias to expand, got %s", got)
	}
}

func TestYAMLLoader_Empty(t *testing.T) {
	if _, err := LoadBytes([]byte(""), "empty.yaml"); err == nil {
		t.Error("expected error for empty yaml")
	}
}

func TestCSVLoader(t *testing.T) {
	input := "id,name,email\n1,Alice,a@example.com\n2,Bob\n"
	v, err := LoadBytes([]byte(input), "people.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"people":[{"id":"1","name":"Alice","email":"a@example.com"},{"id":"2","name":"Bob","email":null}]}`
	if got := marshal(t, v); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestCSVLoader_Empty(t *testing.T) {
	v, err := LoadBytes([]byte(""), "rows.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := marshal(t, v); got != `{"rows":[]}` {
		t.Errorf("unexpected document %s", got)
	}
}

func TestYAMLLoader_AliasExpansionBudget(t *testing.T) {
	var b strings.Builder
	b.WriteString("a0: &a0 lol\n")
	for i := 1; i <= 9; i++ {
		fmt.Fprintf(&b, "a%d: &a%d [", i, i)
		for j := 0; j < 10; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "*a%d", i-1)
		}
		b.WriteString("]\n")
	}

	_, err := LoadBytes([]byte(b.String()), "laughs.yaml")
	if !errors.Is(err, ErrAliasBudget) {
		t.Fatalf("err = %v, want ErrAliasBudget", err)
	}
}

func TestYAMLLoader_AliasesWithinBudget(t *testing.T) {
	src := "row: &row [1, 2, 3]\ngrid: [*row, *row, *row]\n"
	v, err := LoadBytes([]byte(src), "grid.yaml")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	want := `{"row":[1,2,3],"grid":[[1,2,3],[1,2,3],[1,2,3]]}`
	if got := marshal(t, v); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
