package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/stancedb/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// payload is the wire shape the oracle is asked to return
type payload struct {
	Name          string   `json:"name"`
	EntityType    string   `json:"entityType"`
	Profession    string   `json:"profession"`
	Stance        string   `json:"stance" validate:"required,oneof=pro neutral against"`
	Sources       []string `json:"sources" validate:"required"`
	Summary       string   `json:"summary"`
	Confidence    score    `json:"confidence" validate:"gte=0,lte=100"`
	ParentCompany string   `json:"parentCompany"`
}

// score accepts a JSON number or a numeric string such as "85" or "85%"
type score float64

func (s *score) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*s = score(f)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("confidence must be a number: %w", err)
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(str), "%"), 64)
	if err != nil {
		return fmt.Errorf("confidence must be a number: %w", err)
	}
	*s = score(f)
	return nil
}

// Parse extracts and validates a research result from the oracle's raw reply.
// Code fences and any prose around the outermost JSON object are ignored.
func Parse(raw string) (*Result, error) {
	body, err := extractObject(raw)
	if err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	p.Stance = strings.ToLower(strings.TrimSpace(p.Stance))
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, describeValidation(err))
	}

	return &Result{
		Name:          strings.TrimSpace(p.Name),
		EntityType:    strings.ToLower(strings.TrimSpace(p.EntityType)),
		Category:      strings.TrimSpace(p.Profession),
		Stance:        model.Stance(p.Stance),
		Sources:       cleanSources(p.Sources),
		Summary:       strings.TrimSpace(p.Summary),
		Confidence:    int(math.Round(float64(p.Confidence))),
		ParentCompany: strings.TrimSpace(p.ParentCompany),
	}, nil
}

func extractObject(raw string) (string, error) {
	s := stripCodeFence(strings.TrimSpace(raw))

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in response", ErrInvalidFormat)
	}
	return s[start : end+1], nil
}

// fenceTags drops markdown fence markers wherever they appear, including a
// fence and its JSON on a single line
var fenceTags = strings.NewReplacer("```json", "", "```JSON", "", "```", "")

func stripCodeFence(s string) string {
	return strings.TrimSpace(fenceTags.Replace(s))
}

// cleanSources trims, drops non-http(s) entries and duplicates, keeping order
func cleanSources(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))

	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s], got %q", strings.ToLower(fe.Field()), fe.Param(), fe.Value()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(parts, "; ")
}
