package openapi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formdesk/pkg/model"
)

const usersDocument = `{
  "openapi": "3.0.3",
  "info": {"title": "Users", "version": "1.0.0"},
  "paths": {
    "/api/users": {
      "get": {
        "operationId": "listUsers",
        "responses": {"200": {"description": "ok"}}
      },
      "post": {
        "operationId": "createUser",
        "summary": "Create user",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {"$ref": "#/components/schemas/User"}
            }
          }
        },
        "responses": {"201": {"description": "created"}}
      }
    },
    "/api/users/{id}/avatar": {
      "put": {
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}],
        "requestBody": {
          "content": {
            "multipart/form-data": {
              "schema": {
                "type": "object",
                "properties": {"file": {"type": "string", "format": "binary"}}
              }
            }
          }
        },
        "responses": {"204": {"description": "done"}}
      }
    }
  },
  "components": {
    "schemas": {
      "User": {
        "type": "object",
        "required": ["email", "firstName", "addresses"],
        "x-formdesk-order": ["firstName", "email"],
        "properties": {
          "email": {"type": "string", "format": "email"},
          "firstName": {"type": "string", "maxLength": 40, "pattern": "^[A-Za-z]+$"},
          "bio": {"type": "string", "maxLength": 500},
          "birthday": {"type": "string", "format": "date"},
          "lastLogin": {"type": "string", "format": "date-time", "readOnly": true},
          "password": {"type": "string", "format": "password", "minLength": 8},
          "age": {"type": "integer", "minimum": 18, "maximum": 99},
          "active": {"type": "boolean", "default": true},
          "role": {"type": "string", "enum": ["ADMIN", "read_only"]},
          "tags": {"type": "array", "items": {"type": "string", "enum": ["a", "b"]}},
          "teamIds": {"type": "array", "items": {"type": "string"}},
          "addresses": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {"city": {"type": "string"}, "zip": {"type": "string", "default": "00000"}}
            }
          },
          "gender": {"type": "string", "x-formdesk": {"type": "select", "options": "BizGenderEnums", "label": "Sex"}},
          "internal": {"type": "string", "x-formdesk": {"skip": true}},
          "meta": {"type": "object", "properties": {"k": {"type": "string"}}}
        }
      }
    }
  }
}`

func floatPtr(v float64) *float64 { return &v }

func TestParse_Operations(t *testing.T) {
	operations, err := Parse(context.Background(), []byte(usersDocument))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if diff := cmp.Diff([]string{"createUser", "put:/api/users/{id}/avatar"}, OperationIDs(operations)); diff != "" {
		t.Fatalf("operation ids mismatch (-want +got):\n%s", diff)
	}

	avatar := operations["put:/api/users/{id}/avatar"]
	if avatar.Method != "PUT" {
		t.Fatalf("expected PUT method, got %q", avatar.Method)
	}
	if len(avatar.Fields) != 1 || avatar.Fields[0].Type != model.FieldTypeUpload {
		t.Fatalf("expected single upload field, got %+v", avatar.Fields)
	}
}

func TestParse_FieldMapping(t *testing.T) {
	operations, err := Parse(context.Background(), []byte(usersDocument))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	create := operations["createUser"]

	names := make([]string, 0, len(create.Fields))
	for _, field := range create.Fields {
		names = append(names, field.Name)
	}
	wantNames := []string{"firstName", "email", "active", "addresses", "age", "bio", "birthday", "gender", "lastLogin", "password", "role", "tags", "teamIds"}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}

	byName := make(map[string]model.Field, len(create.Fields))
	for _, field := range create.Fields {
		byName[field.Name] = field
	}

	tests := []struct {
		name string
		want model.Field
	}{
		{
			name: "firstName",
			want: model.Field{
				Name: "firstName", Type: model.FieldTypeInput, Label: "First Name", Required: true, MaxLength: 40,
				Rules: []model.Rule{{Pattern: "^[A-Za-z]+$"}},
			},
		},
		{
			name: "email",
			want: model.Field{Name: "email", Type: model.FieldTypeInput, Label: "Email", Required: true, Rules: []model.Rule{{Type: "email"}}},
		},
		{
			name: "bio",
			want: model.Field{Name: "bio", Type: model.FieldTypeTextarea, Label: "Bio", MaxLength: 500, ShowCount: true},
		},
		{
			name: "birthday",
			want: model.Field{Name: "birthday", Type: model.FieldTypeDate, Label: "Birthday"},
		},
		{
			name: "lastLogin",
			want: model.Field{Name: "lastLogin", Type: model.FieldTypeDate, Label: "Last Login", Disabled: true, Format: "YYYY-MM-DD HH:mm:ss"},
		},
		{
			name: "password",
			want: model.Field{Name: "password", Type: model.FieldTypePassword, Label: "Password", Rules: []model.Rule{{Min: floatPtr(8)}}},
		},
		{
			name: "age",
			want: model.Field{Name: "age", Type: model.FieldTypeNumberStepper, Label: "Age", Rules: []model.Rule{{Type: "integer", Min: floatPtr(18), Max: floatPtr(99)}}},
		},
		{
			name: "active",
			want: model.Field{Name: "active", Type: model.FieldTypeSwitch, Label: "Active", Default: true},
		},
		{
			name: "role",
			want: model.Field{
				Name: "role", Type: model.FieldTypeSelect, Label: "Role",
				Options: model.InlineOptions(model.Option{Label: "Admin", Value: "ADMIN"}, model.Option{Label: "Read Only", Value: "read_only"}),
			},
		},
		{
			name: "tags",
			want: model.Field{
				Name: "tags", Type: model.FieldTypeSelect, Label: "Tags", Mode: model.ModeMultiple,
				Options: model.InlineOptions(model.Option{Label: "A", Value: "a"}, model.Option{Label: "B", Value: "b"}),
			},
		},
		{
			name: "teamIds",
			want: model.Field{Name: "teamIds", Type: model.FieldTypeTransfer, Label: "Team Ids"},
		},
		{
			name: "addresses",
			want: model.Field{
				Name: "addresses", Type: model.FieldTypeStructureList, Label: "Addresses", Required: true,
				ItemTemplate: map[string]any{"city": nil, "zip": "00000"},
				Empty:        &model.EmptyNotice{Title: "Please add Addresses"},
			},
		},
		{
			name: "gender",
			want: model.Field{Name: "gender", Type: model.FieldTypeSelect, Label: "Sex", Options: model.OptionsKey("BizGenderEnums")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := byName[tt.name]
			if !ok {
				t.Fatalf("field %q not imported", tt.name)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("field mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestImport_Form(t *testing.T) {
	form, err := Import(context.Background(), []byte(usersDocument), "createUser")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if form.ID != "createUser" || form.Title != "Create user" {
		t.Fatalf("unexpected form identity: %q %q", form.ID, form.Title)
	}
	if form.Header.Path != "/api/users" {
		t.Fatalf("expected header path /api/users, got %q", form.Header.Path)
	}

	if _, err := Import(context.Background(), []byte(usersDocument), "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty document")
	}
	if _, err := Parse(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected error for malformed document")
	}
}

func TestHumanize(t *testing.T) {
	tests := map[string]string{
		"firstName":   "First Name",
		"snake_case":  "Snake Case",
		"ACTIVE":      "Active",
		"kebab-label": "Kebab Label",
		"x":           "X",
	}
	for input, want := range tests {
		if got := humanize(input); got != want {
			t.Fatalf("humanize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{"specs/users.json": {Data: []byte(usersDocument)}}

	data, err := Load(ctx, "specs/users.json", WithFileSystem(fsys))
	if err != nil {
		t.Fatalf("Load fs: %v", err)
	}
	if string(data) != usersDocument {
		t.Fatal("unexpected fs content")
	}

	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(usersDocument), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(ctx, path); err != nil {
		t.Fatalf("Load os: %v", err)
	}

	if _, err := Load(ctx, "https://example.com/openapi.json"); err == nil || !strings.Contains(err.Error(), "http support disabled") {
		t.Fatalf("expected http disabled error, got %v", err)
	}
	if _, err := Load(ctx, " "); err == nil {
		t.Fatal("expected error for empty location")
	}
}
