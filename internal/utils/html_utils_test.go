package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnhanceHTMLContent(t *testing.T) {
	out := string(EnhanceHTMLContent(`<p><img src="https://example.com/a.png"></p>`))
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, `referrerpolicy="no-referrer"`)
	assert.NotContains(t, out, "<body>")

	assert.Equal(t, "", string(EnhanceHTMLContent("")))
}

func TestTextFromHTML(t *testing.T) {
	assert.Equal(t, "Hello world again", TextFromHTML("<p>Hello <b>world</b></p>\n<p>again</p>", 0))
	assert.Equal(t, "", TextFromHTML("", 10))

	long := "<p>" + strings.Repeat("a", 50) + "</p>"
	out := TextFromHTML(long, 10)
	assert.Equal(t, strings.Repeat("a", 10)+"…", out)
}

func TestRenderMarkdown(t *testing.T) {
	out := string(RenderMarkdown("**bold** <script>alert(1)</script>"))
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")

	link := string(RenderMarkdown("[x](https://example.com)"))
	assert.Contains(t, link, `target="_blank"`)
}
