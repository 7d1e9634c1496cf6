package catalog

import (
	"testing"
)

func TestNormalizeTotality(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty input", ""},
		{"not json", "<html>502 bad gateway</html>"},
		{"non-object", `[1,2,3]`},
		{"empty object", `{}`},
		{"missing items", `{"status":true,"pagination":{"currentPage":1}}`},
		{"missing pagination", `{"status":true,"items":[{"slug":"a"}]}`},
		{"null data", `{"status":true,"data":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Normalize([]byte(tt.raw))
			if env.Items == nil {
				t.Fatalf("Items must never be nil")
			}
		})
	}
}

func TestNormalizeItemsPrecedence(t *testing.T) {
	raw := `{
		"status": true,
		"items": [{"slug":"top-level"}],
		"data": {"items": [{"slug":"nested"}]}
	}`
	env := Normalize([]byte(raw))
	if len(env.Items) != 1 || env.Items[0].Slug != "top-level" {
		t.Fatalf("expected top-level items to win, got %#v", env.Items)
	}
}

func TestNormalizeNestedItems(t *testing.T) {
	raw := `{"status":"success","data":{"items":[{"slug":"nested"}]}}`
	env := Normalize([]byte(raw))
	if !env.Status {
		t.Fatalf("expected string status %q to normalize to true", "success")
	}
	if len(env.Items) != 1 || env.Items[0].Slug != "nested" {
		t.Fatalf("expected data.items, got %#v", env.Items)
	}
}

func TestNormalizeDerivesMissingSlug(t *testing.T) {
	raw := `{"status":true,"items":[
		{"name":"Ngôi Trường Xác Sống"},
		{"slug":"kept-as-is","name":"Kept"}
	]}`
	env := Normalize([]byte(raw))
	if len(env.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(env.Items))
	}
	if got := env.Items[0].Slug; got != "ngoi-truong-xac-song" {
		t.Fatalf("derived slug = %q, want %q", got, "ngoi-truong-xac-song")
	}
	if got := env.Items[1].Slug; got != "kept-as-is" {
		t.Fatalf("upstream slug must win, got %q", got)
	}
}

func TestNormalizePaginationPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantPage int
	}{
		{
			"top-level wins",
			`{"pagination":{"currentPage":1},"data":{"pagination":{"currentPage":2}}}`,
			1,
		},
		{
			"data.pagination second",
			`{"data":{"pagination":{"currentPage":2},"params":{"pagination":{"currentPage":3}}}}`,
			2,
		},
		{
			"data.params.pagination last",
			`{"data":{"params":{"pagination":{"currentPage":3,"totalPages":9}}}}`,
			3,
		},
		{
			"page zero clamped up",
			`{"pagination":{"currentPage":0,"totalPages":9}}`,
			1,
		},
		{
			"page past the end clamped down",
			`{"pagination":{"currentPage":14,"totalPages":9}}`,
			9,
		},
		{
			"zero total pages still yields page one",
			`{"pagination":{"currentPage":0,"totalPages":0}}`,
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Normalize([]byte(tt.raw))
			if env.Pagination.CurrentPage != tt.wantPage {
				t.Fatalf("currentPage = %d, want %d", env.Pagination.CurrentPage, tt.wantPage)
			}
		})
	}
}

func TestAdaptDetailRootShape(t *testing.T) {
	raw := `{
		"status": true,
		"movie": {"slug":"ngoi-truong-xac-song","name":"All of Us Are Dead","year":2022},
		"episodes": [{"server_name":"#1","server_data":[{"name":"1","link_embed":"https://p.example/e1"}]}]
	}`
	detail, err := AdaptDetail([]byte(raw))
	if err != nil {
		t.Fatalf("AdaptDetail() error = %v", err)
	}
	if detail.Slug != "ngoi-truong-xac-song" {
		t.Fatalf("unexpected slug %q", detail.Slug)
	}
	if len(detail.Episodes) != 1 || len(detail.Episodes[0].ServerData) != 1 {
		t.Fatalf("episodes not merged: %#v", detail.Episodes)
	}
	if detail.Episodes[0].ServerData[0].LinkEmbed != "https://p.example/e1" {
		t.Fatalf("unexpected embed link")
	}
}

func TestAdaptDetailNestedShape(t *testing.T) {
	raw := `{
		"status": "success",
		"data": {
			"item": {"slug":"nested-slug","name":"Nested"},
			"episodes": [{"server_name":"#1","server_data":[{"name":"Full","link_embed":"https://p.example/full"}]}]
		}
	}`
	detail, err := AdaptDetail([]byte(raw))
	if err != nil {
		t.Fatalf("AdaptDetail() error = %v", err)
	}
	if detail.Slug != "nested-slug" {
		t.Fatalf("unexpected slug %q", detail.Slug)
	}
	if len(detail.Episodes) != 1 {
		t.Fatalf("expected nested episodes to be adopted")
	}
}

func TestAdaptDetailMissingMovie(t *testing.T) {
	if _, err := AdaptDetail([]byte(`{"status":false,"msg":"not found"}`)); err == nil {
		t.Fatalf("expected error for response without a movie document")
	}
}
