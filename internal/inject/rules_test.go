package inject

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesFile = `
[[rule]]
name = "banner"
pattern = "/docs/**"
markup = '<aside id="banner">Preview</aside>'

[[rule]]
name = "survey"
pattern = "/{blog,news}/*"
markup = '<div class="survey"><a href="/s">Tell us</a></div>'
position = "ready"
`

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(rulesFile))
	require.NoError(t, err)
	require.Equal(t, 2, rules.Len())

	assert.Equal(t, PositionStart, rules.Rules[0].Position)
	assert.Equal(t, PositionReady, rules.Rules[1].Position)
}

func TestRulesMatch(t *testing.T) {
	rules, err := ParseRules([]byte(rulesFile))
	require.NoError(t, err)

	tests := []struct {
		path string
		want []string
	}{
		{path: "/docs/guide/intro?lang=en", want: []string{`<aside id="banner">Preview</aside>`}},
		{path: "docs/index.html", want: []string{`<aside id="banner">Preview</aside>`}},
		{path: "/blog/post-1", want: []string{`<div class="survey"><a href="/s">Tell us</a></div>`}},
		{path: "/blog/2024/post", want: nil},
		{path: "/", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var got []string
			for _, f := range rules.Match(tt.path) {
				assert.Equal(t, SourceRule, f.Source)
				got = append(got, string(f.Markup))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRulesMatchFreshIDs(t *testing.T) {
	rules, err := ParseRules([]byte(rulesFile))
	require.NoError(t, err)

	a := rules.Match("/docs/x")
	b := rules.Match("/docs/x")
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].ID, b[0].ID)
}

func TestParseRulesRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		msg  string
	}{
		{
			name: "missing pattern",
			data: "[[rule]]\nmarkup = '<p></p>'\n",
			msg:  "pattern is required",
		},
		{
			name: "bad pattern",
			data: "[[rule]]\nname = 'x'\npattern = '/docs/['\nmarkup = '<p></p>'\n",
			msg:  "bad pattern",
		},
		{
			name: "unbalanced markup",
			data: "[[rule]]\npattern = '/**'\nmarkup = '<div>'\n",
			msg:  "left open",
		},
		{
			name: "unknown position",
			data: "[[rule]]\npattern = '/**'\nmarkup = '<p></p>'\nposition = 'end'\n",
			msg:  "unknown position",
		},
		{
			name: "not toml",
			data: "[[rule]\n",
			msg:  "parse rules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, 0, rules.Len())
	assert.Empty(t, rules.Match("/docs/x"))

	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(rulesFile), 0o600))

	rules, err = LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 2, rules.Len())

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	var nilRules *Rules
	assert.Nil(t, nilRules.Match("/docs/x"))
}
