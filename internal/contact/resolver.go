package contact

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jobcatcher/jobcatcher/internal/jobsource"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Local parts that never reach a human.
var ignoredLocalParts = []string{"noreply", "no-reply", "donotreply", "do-not-reply"}

// Resolve extracts a recruiter email address from a posting. Resolution
// order: the explicit contact field, mailto anchors in an HTML description,
// then plain addresses in the description text. A posting without a contact
// is a normal outcome: ok is false and no error is involved.
func Resolve(p *jobsource.Posting) (addr string, ok bool) {
	if p == nil {
		return "", false
	}

	if addr, ok := validate(p.Contact); ok {
		return addr, true
	}

	description := p.Description
	if looksLikeHTML(description) {
		if addr, ok := fromHTML(description); ok {
			return addr, true
		}
		description = htmlText(description)
	}

	for _, candidate := range emailRe.FindAllString(description, -1) {
		if addr, ok := validate(candidate); ok {
			return addr, true
		}
	}

	return "", false
}

func fromHTML(description string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return "", false
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return true
		}

		candidate := strings.TrimPrefix(href, "mailto:")
		candidate = strings.TrimPrefix(candidate, "MAILTO:")
		if idx := strings.IndexAny(candidate, "?&"); idx != -1 {
			candidate = candidate[:idx]
		}

		if addr, ok := validate(candidate); ok {
			found = addr
			return false
		}
		return true
	})

	return found, found != ""
}

func htmlText(description string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return description
	}
	return doc.Text()
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "<a ") || strings.Contains(lower, "<html") || strings.Contains(lower, "<p>")
}

func validate(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}

	parsed, err := mail.ParseAddress(candidate)
	if err != nil {
		return "", false
	}

	addr := strings.ToLower(parsed.Address)
	local := addr[:strings.Index(addr, "@")]
	for _, ignored := range ignoredLocalParts {
		if strings.Contains(local, ignored) {
			return "", false
		}
	}

	return addr, true
}
