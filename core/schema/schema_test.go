package schema

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const postYAML = `
collection: post
id: uuid
slug: posts
fields:
  title:
    type: string
    required: true
    unique: true
  body:
    type: string
  status:
    type: string
    default: draft
  published:
    type: boolean
    index: true
  created_at:
    type: datetime
    default: now
  updated_at:
    type: datetime
    default: updatedAt
  author:
    type: relation
    ref: user
webhooks:
  - name: notify
    url: https://hooks.example.com/post
    on_operation: [create, update]
    secret: s3cret
`

func TestParse(t *testing.T) {
	col, err := Parse([]byte(postYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if col.Name != "post" {
		t.Errorf("Name = %q", col.Name)
	}
	if col.PathSlug() != "posts" {
		t.Errorf("PathSlug = %q", col.PathSlug())
	}
	if col.IDStrategyOrDefault() != IDUUID {
		t.Errorf("ID = %q", col.IDStrategyOrDefault())
	}
	if len(col.Fields) != 7 {
		t.Errorf("fields = %d, want 7", len(col.Fields))
	}

	title := col.Fields["title"]
	if !title.Required || !title.Unique || title.Type != FieldTypeString {
		t.Errorf("title field = %+v", title)
	}

	author := col.Fields["author"]
	if !author.IsRelation() || author.Ref != "user" {
		t.Errorf("author field = %+v", author)
	}

	if len(col.Webhooks) != 1 || col.Webhooks[0].Secret != "s3cret" {
		t.Errorf("webhooks = %+v", col.Webhooks)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "fields:\n  title: {type: string}\n"},
		{"missing fields", "collection: post\n"},
		{"unknown field type", "collection: post\nfields:\n  title: {type: text}\n"},
		{"relation without ref", "collection: post\nfields:\n  author: {type: relation}\n"},
		{"ref on non-relation", "collection: post\nfields:\n  title: {type: string, ref: user}\n"},
		{"unknown id strategy", "collection: post\nid: snowflake\nfields:\n  title: {type: string}\n"},
		{"webhook without url", "collection: post\nfields:\n  title: {type: string}\nwebhooks:\n  - name: x\n    on_operation: [create]\n"},
		{"webhook bad operation", "collection: post\nfields:\n  title: {type: string}\nwebhooks:\n  - name: x\n    url: https://x\n    on_operation: [upsert]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "content")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	write := func(path, data string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(dir, "user.yaml"), "collection: user\nfields:\n  email: {type: string, unique: true}\n")
	write(filepath.Join(sub, "post.yml"), "collection: post\nfields:\n  title: {type: string}\n")
	write(filepath.Join(dir, "notes.txt"), "ignored")

	cols, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("parsed %d collections, want 2", len(cols))
	}
}

func TestRegistryRelations(t *testing.T) {
	user := Collection{Name: "user", Fields: map[string]Field{
		"email": {Type: FieldTypeString},
	}}
	post := Collection{Name: "post", Fields: map[string]Field{
		"author": {Type: FieldTypeRelation, Ref: "user"},
	}}

	r, err := NewRegistry([]Collection{user, post})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d", r.Len())
	}
	if _, ok := r.Get("post"); !ok {
		t.Error("Get(post) missing")
	}
	if _, ok := r.BySlug("user"); !ok {
		t.Error("BySlug(user) missing")
	}

	all := r.All()
	if len(all) != 2 || all[0].Name != "user" || all[1].Name != "post" {
		t.Errorf("All() order = %v", all)
	}
}

func TestRegistryRejectsUnknownRelationTarget(t *testing.T) {
	post := Collection{Name: "post", Fields: map[string]Field{
		"author": {Type: FieldTypeRelation, Ref: "user"},
	}}
	if _, err := NewRegistry([]Collection{post}); err == nil {
		t.Error("expected unknown relation target error")
	}
}

func TestRegistryRejectsManyToMany(t *testing.T) {
	post := Collection{Name: "post", Fields: map[string]Field{
		"tags": {Type: FieldTypeRelation, Ref: "tag", Many: true},
	}}
	tag := Collection{Name: "tag", Fields: map[string]Field{
		"posts": {Type: FieldTypeRelation, Ref: "post", Many: true},
	}}
	if _, err := NewRegistry([]Collection{post, tag}); err == nil {
		t.Error("expected many-to-many rejection")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	a := Collection{Name: "post", Fields: map[string]Field{"t": {Type: FieldTypeString}}}
	b := Collection{Name: "post", Fields: map[string]Field{"t": {Type: FieldTypeString}}}
	if _, err := NewRegistry([]Collection{a, b}); err == nil {
		t.Error("expected duplicate name error")
	}

	c := Collection{Name: "article", Slug: "post", Fields: map[string]Field{"t": {Type: FieldTypeString}}}
	if _, err := NewRegistry([]Collection{a, c}); err == nil {
		t.Error("expected slug clash error")
	}
}

func TestDefaults(t *testing.T) {
	col, err := Parse([]byte(postYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stamp := now.Format(time.RFC3339)

	create := Defaults(col, "create", now)
	if create["status"] != "draft" {
		t.Errorf("create status = %v", create["status"])
	}
	if create["created_at"] != stamp || create["updated_at"] != stamp {
		t.Errorf("create timestamps = %v / %v", create["created_at"], create["updated_at"])
	}

	update := Defaults(col, "update", now)
	if _, ok := update["status"]; ok {
		t.Error("update applied a static default")
	}
	if _, ok := update["created_at"]; ok {
		t.Error("update touched a now-default field")
	}
	if update["updated_at"] != stamp {
		t.Errorf("update updated_at = %v", update["updated_at"])
	}
}

func TestFieldColumnName(t *testing.T) {
	f := Field{Type: FieldTypeString}
	if f.ColumnName("title") != "title" {
		t.Errorf("ColumnName = %q", f.ColumnName("title"))
	}
	f.Map = "post_title"
	if f.ColumnName("title") != "post_title" {
		t.Errorf("mapped ColumnName = %q", f.ColumnName("title"))
	}
}

func TestFieldSQLType(t *testing.T) {
	tests := []struct {
		ft   FieldType
		want string
	}{
		{FieldTypeInt, "INTEGER"},
		{FieldTypeBigInt, "INTEGER"},
		{FieldTypeBoolean, "INTEGER"},
		{FieldTypeFloat, "REAL"},
		{FieldTypeDecimal, "REAL"},
		{FieldTypeString, "TEXT"},
		{FieldTypeJSON, "TEXT"},
		{FieldTypeDateTime, "TEXT"},
	}
	for _, tt := range tests {
		if got := (Field{Type: tt.ft}).SQLType(); got != tt.want {
			t.Errorf("SQLType(%s) = %q, want %q", tt.ft, got, tt.want)
		}
	}
}
