package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParagraphs(t *testing.T) {
	md := "# Incident\n\n" +
		"The deployment **failed** at 10:30 AM.\nIt caused an outage. <!-- aclarai:id=blk_1 ver=2 -->\n^blk_1\n\n" +
		"```go\nfmt.Println(\"skip me\")\n```\n\n" +
		"- Rollback took `5m`.\n- See <https://status.example.com>.\n\n" +
		"<div>Raw <b>HTML</b> note.<script>ignored()</script></div>\n"

	got := Paragraphs(md)
	assert.Equal(t, []string{
		"Incident",
		"The deployment failed at 10:30 AM. It caused an outage.",
		"Rollback took 5m.",
		"See https://status.example.com.",
		"Raw HTML note.",
	}, got)
}

func TestStripMarkers(t *testing.T) {
	in := "Some text <!-- id=blk_9 ver=3 -->\n^blk_9\nMore ^notanchor text\n"
	out := StripMarkers(in)
	assert.NotContains(t, out, "id=blk_9")
	assert.NotContains(t, out, "^blk_9")
	assert.Contains(t, out, "^notanchor text")
}

func TestHTMLText(t *testing.T) {
	assert.Equal(t, "Hello world", HTMLText("<p>Hello <em>world</em></p><style>p{}</style>"))
}
