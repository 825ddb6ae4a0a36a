package htmldoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html>
<head>
  <title>Sample</title>
  <link rel="stylesheet" href="/css/site.css">
  <link rel="alternate" href="/feed.xml">
  <script src="js/app.js"></script>
  <script>var inline = "ignored";</script>
  <style>body { color: red }</style>
</head>
<body>
  <a href="/about">About</a>
  <a href="contact.html">Contact</a>
  <a href="https://other.example.org/page">External</a>
  <a href="ftp://files.example.com/file">Skipped</a>
  <area href="/map">
  <img src="/img/logo.png">
  <img src="banner.gif">
  <img src="/img/logo.png">
  <iframe src="/embed/video"></iframe>
  <p>Hello    world</p>
  <p>again</p>
</body>
</html>`

func TestParseCollectsResources(t *testing.T) {
	doc, err := Parse("http://www.example.com/docs/index.html", samplePage)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://www.example.com/feed.xml",
		"http://www.example.com/about",
		"http://www.example.com/docs/contact.html",
		"https://other.example.org/page",
		"http://www.example.com/map",
	}, doc.Links())

	assert.Equal(t, []string{
		"http://www.example.com/img/logo.png",
		"http://www.example.com/docs/banner.gif",
	}, doc.Images(), "duplicates collapse, insertion order kept")

	assert.Equal(t, []string{
		"http://www.example.com/embed/video",
	}, doc.Frames())

	assert.Equal(t, []string{
		"http://www.example.com/css/site.css",
		"http://www.example.com/docs/js/app.js",
		"http://www.example.com/img/logo.png",
		"http://www.example.com/docs/banner.gif",
		"http://www.example.com/embed/video",
	}, doc.AssociatedFiles())
}

func TestParseTextStripsTagsAndScripts(t *testing.T) {
	doc, err := Parse("http://example.com/", samplePage)
	require.NoError(t, err)

	text := doc.Text()
	assert.Contains(t, text, "Hello world")
	assert.Contains(t, text, "again")
	assert.NotContains(t, text, "inline")
	assert.NotContains(t, text, "color: red")
}

func TestParseHonorsBaseHref(t *testing.T) {
	page := `<html><head><base href="http://cdn.example.net/assets/"></head>
	<body><img src="logo.png"><img src="/rooted.png"></body></html>`

	doc, err := Parse("http://www.example.com/page", page)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://cdn.example.net/assets/logo.png",
		"http://www.example.com/rooted.png",
	}, doc.Images())
}

func TestParsePortPreservedInResolution(t *testing.T) {
	doc, err := Parse("http://example.com:8080/dir/page.html", `<img src="pic.png"><img src="/abs.png">`)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://example.com:8080/dir/pic.png",
		"http://example.com:8080/abs.png",
	}, doc.Images())
}

func TestParseRootDocumentBase(t *testing.T) {
	doc, err := Parse("http://example.com", `<img src="pic.png">`)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://example.com/pic.png"}, doc.Images())
}

func TestParseInvalidDocumentURL(t *testing.T) {
	_, err := Parse("http://exa mple.com/", "<html></html>")
	assert.Error(t, err)
}

func TestParseFrameAndInputSources(t *testing.T) {
	page := `<frameset><frame src="/top"><frame src="/bottom"></frameset>
	<input type="image" src="/button.png">`

	doc, err := Parse("http://example.com/", page)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://example.com/top",
		"http://example.com/bottom",
		"http://example.com/button.png",
	}, doc.Frames())
}
