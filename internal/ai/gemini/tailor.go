package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/jobcatcher/jobcatcher/internal/ai"
	"github.com/jobcatcher/jobcatcher/internal/jobsource"
	logfields "github.com/jobcatcher/jobcatcher/internal/logger"
	"github.com/jobcatcher/jobcatcher/internal/resume"
	"github.com/jobcatcher/jobcatcher/internal/utils"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

//go:embed prompt.md
var promptTemplate string

const systemInstruction = "You are an expert resume writer for technical roles. " +
	"You rewrite resumes to match job postings without fabricating anything."

const defaultMaxLogLength = 200

// Tailor asks the generator to rewrite resume sections for one posting and
// applies the answer to the template.
type Tailor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewTailor(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Tailor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Tailor{
		generator: generator,
		logger:    logfields.WithCommonFields(logger, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (t *Tailor) Tailor(ctx context.Context, tmpl *resume.Template, posting *jobsource.Posting) (*resume.Document, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("resume template is required")
	}
	if posting == nil {
		return nil, fmt.Errorf("posting is required")
	}

	postingJSON, err := json.MarshalIndent(posting, "", "  ")
	if err != nil {
		return nil, &ai.GenerationError{PostingID: posting.ID, Err: fmt.Errorf("marshal posting payload: %w", err)}
	}

	prompt := buildPrompt(tmpl.Text(), string(postingJSON))

	t.logger.Debug("gemini generate content request",
		zap.String("posting_id", posting.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, t.maxLogLen)),
	)

	raw, err := t.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, &ai.GenerationError{PostingID: posting.ID, Err: err}
	}

	t.logger.Debug("gemini generate content response",
		zap.String("posting_id", posting.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, t.maxLogLen)),
	)

	sections, err := parseSections(raw)
	if err != nil {
		return nil, &ai.GenerationError{PostingID: posting.ID, Err: err}
	}

	return tmpl.Derive(posting.ID, posting.Title, sections), nil
}

func buildPrompt(resumeText, postingJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Base resume:\n{{RESUME}}\n\nJob posting:\n{{POSTING_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{RESUME}}", resumeText)
	prompt = strings.ReplaceAll(prompt, "{{POSTING_JSON}}", postingJSON)
	return prompt
}

func parseSections(raw string) (*resume.Sections, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	sections := &resume.Sections{
		Summary:    coerceString(data["summary"]),
		Skills:     coerceStringSlice(data["skills"]),
		Highlights: coerceStringSlice(data["highlights"]),
	}

	if sections.Summary == "" && len(sections.Skills) == 0 && len(sections.Highlights) == 0 {
		return nil, fmt.Errorf("gemini response contains no usable sections")
	}

	return sections, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
