package export

import (
	"strings"
	"testing"
	"time"

	"portfolio/api/internal/store"
)

func TestRenderResumeHTML(t *testing.T) {
	data := ResumeData{
		Name:        "Ada Lovelace",
		Headline:    "Backend Engineer",
		Email:       "ada@example.com",
		About:       "I build things.",
		GeneratedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		SkillGroups: []SkillGroup{
			{Category: "Programming Languages", Skills: []string{"Go", "Python"}},
		},
		Timeline: []TimelineEntry{
			{Header: "Acme Corp", Subheader: "Engineer", Date: "2023", Description: "Shipped stuff"},
		},
	}

	html, err := RenderResumeHTML(data)
	if err != nil {
		t.Fatalf("RenderResumeHTML() error = %v", err)
	}

	for _, want := range []string{"Ada Lovelace", "Backend Engineer", "Programming Languages", "Go", "Acme Corp", "Mar 1, 2025"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered resume missing %q", want)
		}
	}
}

func TestRenderResumeEscapesHTML(t *testing.T) {
	html, err := RenderResumeHTML(ResumeData{
		Name:  "<script>alert(1)</script>",
		About: "a < b",
	})
	if err != nil {
		t.Fatalf("RenderResumeHTML() error = %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("template did not escape user content")
	}
}

func TestGroupSkillsKeepsCategoryOrder(t *testing.T) {
	skills := []store.Skill{
		{Name: "Postgres", Category: "Databases & Tools"},
		{Name: "Go", Category: "Programming Languages"},
		{Name: "Python", Category: "Programming Languages"},
	}

	groups := groupSkills(skills)
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d", len(groups))
	}
	if groups[0].Category != "Programming Languages" {
		t.Errorf("groups[0] = %q, want fixed category order", groups[0].Category)
	}
	if len(groups[0].Skills) != 2 || groups[0].Skills[0] != "Go" {
		t.Errorf("groups[0].Skills = %v", groups[0].Skills)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ada Lovelace", "Ada-Lovelace"},
		{"weird/chars*here", "weirdcharshere"},
		{"", "resume"},
		{"///", "resume"},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b<c>")
	if strings.Contains(got, " ") || strings.Contains(got, "+") {
		t.Errorf("spaces not encoded as %%20: %q", got)
	}
	if !strings.Contains(got, "%20") {
		t.Errorf("expected %%20 in %q", got)
	}
	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Errorf("angle brackets not encoded: %q", got)
	}
}
