package resume

import (
	"strings"
	"testing"
)

const baseTemplate = `Anuraj R
QA Automation Engineer

Profile Summary
Experienced QA engineer with a focus on test automation.

Skills
Java, Selenium, TestNG

Experience
Acme Corp - QA Engineer (2019-2024)
- Built UI regression suites
`

func TestDeriveReplacesSections(t *testing.T) {
	tmpl, err := NewTemplate(baseTemplate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := tmpl.Derive("p1", "Senior QA Engineer", &Sections{
		Summary:    "Automation-first QA engineer.\nComfortable with API testing.",
		Skills:     []string{"Go", "Selenium", "API Testing"},
		Highlights: []string{"Cut regression time by 60%"},
	})

	if doc.PostingID != "p1" || doc.PostingTitle != "Senior QA Engineer" {
		t.Fatalf("unexpected document metadata: %+v", doc)
	}
	if !strings.Contains(doc.Body, "Automation-first QA engineer.") {
		t.Fatalf("summary was not replaced:\n%s", doc.Body)
	}
	if !strings.Contains(doc.Body, "Go, Selenium, API Testing") {
		t.Fatalf("skills were not replaced:\n%s", doc.Body)
	}
	if strings.Contains(doc.Body, "Java, Selenium, TestNG") {
		t.Fatalf("old skills line still present:\n%s", doc.Body)
	}
	if !strings.Contains(doc.Body, "- Cut regression time by 60%") {
		t.Fatalf("highlights missing:\n%s", doc.Body)
	}
	if !strings.Contains(doc.Body, "Senior QA Engineer") {
		t.Fatalf("posting title missing from body:\n%s", doc.Body)
	}
}

func TestDeriveNeverMutatesTemplate(t *testing.T) {
	tmpl, err := NewTemplate(baseTemplate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := tmpl.Text()
	_ = tmpl.Derive("p1", "SDET", &Sections{
		Summary: "Changed",
		Skills:  []string{"Changed"},
	})

	if tmpl.Text() != before {
		t.Fatalf("template was mutated by Derive")
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	tmpl, err := NewTemplate(baseTemplate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sections := &Sections{Summary: "Same summary", Skills: []string{"Go"}}
	a := tmpl.Derive("p1", "QA Engineer", sections)
	b := tmpl.Derive("p1", "QA Engineer", sections)

	if a.Body != b.Body {
		t.Fatalf("derive must be deterministic for identical inputs")
	}
}

func TestDeriveWithoutMatchingHeadingsKeepsTemplate(t *testing.T) {
	tmpl, err := NewTemplate("Just a name\nand a line of text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := tmpl.Derive("p1", "QA Engineer", &Sections{Summary: "New summary"})
	if !strings.Contains(doc.Body, "and a line of text") {
		t.Fatalf("original content lost:\n%s", doc.Body)
	}
	if !strings.Contains(doc.Body, "Tailored for: QA Engineer") {
		t.Fatalf("expected tailored header when title absent from template:\n%s", doc.Body)
	}
}

func TestNewTemplateRejectsEmpty(t *testing.T) {
	if _, err := NewTemplate("   \n  "); err == nil {
		t.Fatal("expected error for empty template")
	}
}
