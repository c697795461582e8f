package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/stancedb/internal/model"
)

const validReply = `{
  "name": "Bella Hadid",
  "entityType": "person",
  "profession": "Model",
  "stance": "pro",
  "sources": ["https://a.example/1", "https://b.example/2", "https://c.example/3"],
  "summary": "Publicly advocated for a ceasefire.",
  "confidence": 92,
  "parentCompany": ""
}`

func TestParse_Plain(t *testing.T) {
	res, err := Parse(validReply)
	require.NoError(t, err)

	assert.Equal(t, "Bella Hadid", res.Name)
	assert.Equal(t, "person", res.EntityType)
	assert.Equal(t, "Model", res.Category)
	assert.Equal(t, model.StancePro, res.Stance)
	assert.Len(t, res.Sources, 3)
	assert.Equal(t, 92, res.Confidence)
}

func TestParse_Wrapped(t *testing.T) {
	tests := map[string]string{
		"json fence":    "```json\n" + validReply + "\n```",
		"bare fence":    "```\n" + validReply + "\n```",
		"leading prose": "Here is the research you asked for:\n" + validReply + "\nLet me know if you need more.",
		"fence + prose": "Sure!\n```json\n" + validReply + "\n```",
		"inline fence":  "```json" + validReply + "```",
		"spaced fence":  "```json " + validReply + " ```",
		"upper tag":     "```JSON\n" + validReply + "\n```",
		"single line":   "```json{\"stance\":\"pro\",\"sources\":[\"https://a.example\",\"https://b.example\"],\"confidence\":80}```",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, model.StancePro, res.Stance)
		})
	}
}

func TestParse_StanceCaseInsensitive(t *testing.T) {
	res, err := Parse(`{"stance":" AGAINST ","sources":["https://x.example","https://y.example"],"confidence":50}`)
	require.NoError(t, err)
	assert.Equal(t, model.StanceAgainst, res.Stance)
}

func TestParse_EmptySourcesAllowed(t *testing.T) {
	res, err := Parse(`{"stance":"neutral","sources":[],"confidence":70}`)
	require.NoError(t, err)
	assert.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)
}

func TestParse_ConfidenceForms(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`"85"`, 85},
		{`"85%"`, 85},
		{`72.6`, 73},
		{`null`, 0},
	}

	for _, tt := range tests {
		res, err := Parse(`{"stance":"pro","sources":[],"confidence":` + tt.raw + `}`)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, res.Confidence, tt.raw)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":           "I could not find anything about this person.",
		"missing stance":     `{"sources":["https://a.example"],"confidence":50}`,
		"null stance":        `{"stance":null,"sources":[],"confidence":50}`,
		"unknown stance":     `{"stance":"supportive","sources":[],"confidence":50}`,
		"missing sources":    `{"stance":"pro","confidence":50}`,
		"null sources":       `{"stance":"pro","sources":null,"confidence":50}`,
		"sources not array":  `{"stance":"pro","sources":"https://a.example","confidence":50}`,
		"confidence range":   `{"stance":"pro","sources":[],"confidence":150}`,
		"confidence garbage": `{"stance":"pro","sources":[],"confidence":"high"}`,
		"truncated":          `{"stance":"pro","sources":["https://a.example"`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			assert.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
}

func TestParse_CleansSources(t *testing.T) {
	res, err := Parse(`{"stance":"pro","confidence":60,"sources":[
		" https://a.example/1 ",
		"https://a.example/1",
		"",
		"not a url",
		"ftp://files.example/x",
		"https://b.example/2"
	]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1", "https://b.example/2"}, res.Sources)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "{}", stripCodeFence("```json\n{}\n```"))
	assert.Equal(t, "{}", stripCodeFence("{}"))
	assert.Equal(t, "{}", stripCodeFence("```\n{}"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json{\"a\":1}```"))
	assert.Equal(t, "{}", stripCodeFence("```json {} ```"))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Acme Corp")

	assert.Equal(t, p, BuildPrompt("Acme Corp"))
	assert.Contains(t, p, `"Acme Corp"`)
	assert.Contains(t, p, "STEP 1")
	assert.Contains(t, p, `"entityType"`)
	assert.Contains(t, p, "3-5 verified source URLs")
	assert.NotEqual(t, p, BuildPrompt("Other"))
}
