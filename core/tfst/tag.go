package tfst

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// EpsilonContent marks an empty box.
const EpsilonContent = "<E>"

// Tag is the parsed form of a box content. Contents that are not of the
// {form,lemma.POS+traits:inflection} shape keep only Raw.
type Tag struct {
	Raw        string   `json:"raw"`
	Surface    string   `json:"surface,omitempty"`
	Lemma      string   `json:"lemma,omitempty"`
	POS        string   `json:"pos,omitempty"`
	Semantic   []string `json:"semantic,omitempty"`
	Inflection []string `json:"inflection,omitempty"`
}

// tagGrammar is the participle grammar for lexical tags.
// Examples: "{le,le.DET+Def:ms}", "{pommes,pomme.N+z1:fp}", "{\,,\,.PONCT}"
//
//nolint:govet // participle grammar tags are not standard struct tags
type tagGrammar struct {
	Form       string   `"{" @(Text | Escaped)*`
	Lemma      string   `"," @(Text | Escaped)*`
	POS        string   `"." @Text`
	Semantic   []string `( "+" @Text )*`
	Inflection []string `( ":" @Text )* "}"`
}

var tagLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Escaped", Pattern: `\\.`},
	{Name: "Punct", Pattern: `[{},.+:]`},
	{Name: "Text", Pattern: `[^{},.+:\\]+`},
})

var tagParser = participle.MustBuild[tagGrammar](
	participle.Lexer(tagLexer),
)

// ParseTag parses a box content. It never fails: anything that is not a
// well-formed tag yields a Tag with only Raw set.
func ParseTag(content string) Tag {
	t := Tag{Raw: content}
	if !strings.HasPrefix(content, "{") || !strings.HasSuffix(content, "}") || content == "{}" {
		return t
	}
	g, err := tagParser.ParseString("", content)
	if err != nil {
		return t
	}
	t.Surface = unescapeTag(g.Form)
	t.Lemma = unescapeTag(g.Lemma)
	if t.Lemma == "" {
		t.Lemma = t.Surface
	}
	t.POS = g.POS
	if len(g.Semantic) > 0 {
		t.Semantic = g.Semantic
	}
	if len(g.Inflection) > 0 {
		t.Inflection = g.Inflection
	}
	return t
}

// IsLexical reports whether the tag was parsed into its fields.
func (t Tag) IsLexical() bool {
	return t.POS != ""
}

// IsEpsilon reports whether the tag is the empty-box marker.
func (t Tag) IsEpsilon() bool {
	return t.Raw == EpsilonContent || strings.HasPrefix(t.Raw, "{"+EpsilonContent+",")
}

// Form returns the surface of a lexical tag, or the raw content otherwise.
func (t Tag) Form() string {
	if t.IsLexical() {
		return t.Surface
	}
	return t.Raw
}

// Code renders lemma.POS+traits:inflection, the part of a tag after the form.
func (t Tag) Code() string {
	if !t.IsLexical() {
		return t.Raw
	}
	var sb strings.Builder
	sb.WriteString(t.Lemma)
	sb.WriteByte('.')
	sb.WriteString(t.POS)
	for _, s := range t.Semantic {
		sb.WriteByte('+')
		sb.WriteString(s)
	}
	for _, s := range t.Inflection {
		sb.WriteByte(':')
		sb.WriteString(s)
	}
	return sb.String()
}

// Delaf renders the tag as a dictionary line: form,lemma.POS+traits:inflection.
func (t Tag) Delaf() string {
	if !t.IsLexical() {
		return t.Raw
	}
	return escapeTag(t.Surface) + "," + escapeTag(t.Lemma) + "." + strings.TrimPrefix(t.Code(), t.Lemma+".")
}

// String returns the serialized form used for display and regex filtering.
func (t Tag) String() string {
	if !t.IsLexical() {
		return t.Raw
	}
	return t.Delaf()
}

func unescapeTag(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func escapeTag(s string) string {
	if !strings.ContainsAny(s, "{},.+:\\") {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		if strings.ContainsRune("{},.+:\\", r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
