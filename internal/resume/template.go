package resume

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Template is the base resume loaded once at startup. It is immutable for
// the lifetime of the process; tailoring always derives a new Document.
type Template struct {
	text string
}

func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resume template %q: %w", path, err)
	}

	return NewTemplate(string(data))
}

func NewTemplate(text string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("resume template is empty")
	}

	return &Template{text: text}, nil
}

func (t *Template) Text() string {
	return t.text
}
