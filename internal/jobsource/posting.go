package jobsource

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	PostingIDField     = "ID"
	PostingSourceField = "Source"
)

type Postings struct {
	Items []*Posting
}

type Posting struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Contact     string `json:"contact_email,omitempty"`
	Source      string `json:"source,omitempty"`
	PublishedAt string `json:"published_at,omitempty" mapstructure:"published_at"`
}

type ExcludedPostings struct {
	Items []*ExcludedPosting
}

type ExcludedPosting struct {
	ID         string
	URL        string
	Title      string
	ExcludedAt time.Time
}

// EnsureID fills the posting ID with a stable hash of the source URL when
// the provider did not supply one.
func (p *Posting) EnsureID() {
	if p.ID != "" {
		return
	}
	sum := sha1.Sum([]byte(p.URL + p.Title))
	p.ID = hex.EncodeToString(sum[:])
}

func (p *Posting) GetStringField(name string) string {
	switch name {
	case PostingIDField:
		return p.ID
	case PostingSourceField:
		return p.Source
	default:
		return ""
	}
}

// MatchesAny reports whether the posting title or description contains at
// least one of the provided keywords, case-insensitively.
func (p *Posting) MatchesAny(keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(p.Title + " " + p.Description)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (p *Postings) Len() int {
	return len(p.Items)
}

func (p *Postings) FindByID(id string) *Posting {
	for _, posting := range p.Items {
		if posting.ID == id {
			return posting
		}
	}
	return nil
}

// Append merges another postings list into this one.
func (p *Postings) Append(other *Postings) {
	if other == nil {
		return
	}
	p.Items = append(p.Items, other.Items...)
}

// Truncate keeps at most n postings, dropping the rest.
func (p *Postings) Truncate(n int) {
	if n > 0 && len(p.Items) > n {
		p.Items = p.Items[:n]
	}
}

// Exclude removes postings whose named field matches any of the targets and
// returns the IDs of removed postings.
func (p *Postings) Exclude(name string, targets []string) []string {
	var excluded []string
	for _, target := range targets {
		for idx, posting := range p.Items {
			if posting.GetStringField(name) == target {
				p.RemoveByIndex(idx)
				excluded = append(excluded, posting.ID)
				break
			}
		}
	}
	return excluded
}

// RemoveByIndex removes a posting from the list by index. Do not preserve order.
func (p *Postings) RemoveByIndex(idx int) {
	p.Items[idx] = p.Items[len(p.Items)-1]
	p.Items = p.Items[:len(p.Items)-1]
}

func (p *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportBySource groups a short summary of postings by their source name.
func (p *Postings) ReportBySource() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, posting := range p.Items {
		key := posting.Source
		if key == "" {
			key = "unknown"
		}
		report[key] = append(report[key], map[string]string{
			"title":    posting.Title,
			"company":  posting.Company,
			"url":      posting.URL,
			"location": posting.Location,
		})
	}
	return report
}

func (p *Postings) ToExcluded() *ExcludedPostings {
	excluded := &ExcludedPostings{}
	for _, posting := range p.Items {
		excluded.Items = append(excluded.Items, &ExcludedPosting{
			ID:         posting.ID,
			URL:        posting.URL,
			Title:      posting.Title,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

// GetExcludedPostingsFromFile loads the exclude file. A file that does not
// exist yet counts as an empty set.
func GetExcludedPostingsFromFile(path string) (*ExcludedPostings, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return &ExcludedPostings{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedPostings{}, nil
	}

	var excluded ExcludedPostings
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *ExcludedPostings) Append(s *ExcludedPostings) {
	e.Items = append(e.Items, s.Items...)
}

func (e *ExcludedPostings) PostingIDs() []string {
	ids := make([]string, 0)
	for _, posting := range e.Items {
		ids = append(ids, posting.ID)
	}
	return ids
}

func (e *ExcludedPostings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// RetrievalError signals that an external job-listing provider could not be
// queried. The pipeline treats it as retryable.
type RetrievalError struct {
	Source string
	Err    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieving postings from %s: %v", e.Source, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
