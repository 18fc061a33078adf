package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectorSmallBody(t *testing.T) {
	d := NewDetector(512, nil, nil)
	require.True(t, d.NeedsRender([]byte("<html><body></body></html>")))
}

func TestDetectorSPAKeyword(t *testing.T) {
	d := NewDetector(0, nil, DefaultSPAKeywords)
	body := []byte(`<html><body><div id="root"></div><script id="__NEXT_DATA__" type="application/json">{}</script></body></html>`)
	require.True(t, d.NeedsRender(body))
}

func TestDetectorMissingSelector(t *testing.T) {
	d := NewDetector(0, []string{"main"}, nil)
	require.True(t, d.NeedsRender([]byte("<html><body><div>no main here</div></body></html>")))
	require.False(t, d.NeedsRender([]byte("<html><body><main>content</main></body></html>")))
}

func TestDetectorPlainPagePasses(t *testing.T) {
	d := NewDetector(10, []string{"body"}, DefaultSPAKeywords)
	body := []byte(`<html><body><h1>Plain server rendered page</h1><p>With real content.</p></body></html>`)
	require.False(t, d.NeedsRender(body))
}

func TestNilDetectorNeverRenders(t *testing.T) {
	var d *Detector
	require.False(t, d.NeedsRender([]byte("")))
}
