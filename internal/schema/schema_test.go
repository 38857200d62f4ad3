package schema

import (
	"errors"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSchema(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_RepositorySchema(t *testing.T) {
	set, err := Load("../../schema")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := map[string]uint16{
		"Ping":           100,
		"Pong":           101,
		"Login":          200,
		"LoginResult":    201,
		"ChatMessage":    300,
		"MoveCommand":    301,
		"EntityPosition": 302,
	}
	if len(set.Messages) != len(want) {
		t.Fatalf("Load() returned %d messages, want %d", len(set.Messages), len(want))
	}
	for name, id := range want {
		m, ok := set.Lookup(name)
		if !ok {
			t.Errorf("message %s missing", name)
			continue
		}
		if m.ID != id {
			t.Errorf("%s id = %d, want %d", name, m.ID, id)
		}
	}

	var names []string
	for _, c := range set.Categories {
		names = append(names, c.Name)
	}
	if got := strings.Join(names, ","); got != "net,auth,game" {
		t.Errorf("category order = %s, want net,auth,game", got)
	}
}

func TestNewSet_Validation(t *testing.T) {
	tests := []struct {
		name string
		cats []Category
	}{
		{"duplicate category", []Category{
			{Name: "net", Offset: 0, Messages: []string{"A"}},
			{Name: "net", Offset: 10, Messages: []string{"B"}},
		}},
		{"overlapping ranges", []Category{
			{Name: "net", Offset: 100, Messages: []string{"A", "B", "C"}},
			{Name: "auth", Offset: 102, Messages: []string{"D"}},
		}},
		{"duplicate message", []Category{
			{Name: "net", Offset: 0, Messages: []string{"A"}},
			{Name: "auth", Offset: 10, Messages: []string{"A"}},
		}},
		{"id overflow", []Category{
			{Name: "net", Offset: 65535, Messages: []string{"A", "B"}},
		}},
		{"negative offset", []Category{
			{Name: "net", Offset: -1, Messages: []string{"A"}},
		}},
		{"unexported message", []Category{
			{Name: "net", Offset: 0, Messages: []string{"ping"}},
		}},
		{"bad category name", []Category{
			{Name: "net-core", Offset: 0, Messages: []string{"A"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSet(tt.cats)
			if !errors.Is(err, ErrInvalidSchema) {
				t.Errorf("NewSet() error = %v, want ErrInvalidSchema", err)
			}
		})
	}
}

func TestNewSet_AdjacentRanges(t *testing.T) {
	set, err := NewSet([]Category{
		{Name: "b", Offset: 2, Messages: []string{"C"}},
		{Name: "a", Offset: 0, Messages: []string{"A", "B"}},
	})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}
	if m, _ := set.Lookup("C"); m.ID != 2 {
		t.Errorf("C id = %d, want 2", m.ID)
	}
	if set.Categories[0].Name != "a" {
		t.Errorf("categories not ordered by offset: %v", set.Categories)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("Load(empty dir) error = %v", err)
	}

	dir := t.TempDir()
	writeSchema(t, dir, "bad.json", `{"category": "net", "offset": `)
	if _, err := Load(dir); !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("Load(malformed) error = %v", err)
	}
}

func TestGenerate(t *testing.T) {
	set, err := Load("../../schema")
	if err != nil {
		t.Fatal(err)
	}

	src, err := Generate(set, "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	again, err := Generate(set, "")
	if err != nil {
		t.Fatal(err)
	}
	if string(src) != string(again) {
		t.Error("Generate() is not deterministic")
	}

	f, err := parser.ParseFile(token.NewFileSet(), "ids_gen.go", src, 0)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	if f.Name.Name != DefaultPackage {
		t.Errorf("package = %s, want %s", f.Name.Name, DefaultPackage)
	}

	normalized := strings.Join(strings.Fields(string(src)), " ")
	for _, want := range []string{
		"// Code generated by protogen. DO NOT EDIT.",
		"NetOffset uint16 = 100",
		"GameOffset uint16 = 300",
		"PingID uint16 = 100",
		"EntityPositionID uint16 = 302",
		`{Name: "auth", Offset: AuthOffset},`,
		`{ID: LoginResultID, Name: "LoginResult", Category: "auth", new: func() wire.Message { return new(LoginResult) }},`,
		"func (*MoveCommand) ProtocolID() uint16 { return MoveCommandID }",
	} {
		if !strings.Contains(normalized, want) {
			t.Errorf("generated source missing %q", want)
		}
	}
}

func TestCompile(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "net.json", `{"category": "net", "offset": 10, "messages": ["Hello"]}`)
	out := filepath.Join(t.TempDir(), "gen", "ids_gen.go")

	changed, err := Compile(dir, out, "proto")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !changed {
		t.Error("first Compile() reported no change")
	}
	src, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(src), "package proto") || !strings.Contains(string(src), "HelloID uint16 = 10") {
		t.Errorf("unexpected output:\n%s", src)
	}

	changed, err = Compile(dir, out, "proto")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("second Compile() rewrote an identical file")
	}
}
