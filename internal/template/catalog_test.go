package template

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"deckflow/internal/types/deck"
)

const presentationXML = `<?xml version="1.0" encoding="UTF-8"?>
<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:sldSz cx="12192000" cy="6858000"/>
</p:presentation>`

const masterXML = `<?xml version="1.0" encoding="UTF-8"?>
<p:sldMaster xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="2" name="Title Placeholder 1"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
      <p:spPr><a:xfrm><a:off x="838200" y="365125"/><a:ext cx="10515600" cy="1325563"/></a:xfrm></p:spPr>
    </p:sp>
  </p:spTree></p:cSld>
</p:sldMaster>`

const layout1XML = `<?xml version="1.0" encoding="UTF-8"?>
<p:sldLayout xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld name="Title and Content"><p:spTree>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
      <p:spPr/>
    </p:sp>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="3" name="Content Placeholder 2"/><p:cNvSpPr/><p:nvPr><p:ph idx="1"/></p:nvPr></p:nvSpPr>
      <p:spPr><a:xfrm><a:off x="838200" y="1825625"/><a:ext cx="2540000" cy="1270000"/></a:xfrm></p:spPr>
    </p:sp>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="4" name="Slide Number Placeholder 3"/><p:cNvSpPr/><p:nvPr><p:ph type="sldNum" sz="quarter" idx="12"/></p:nvPr></p:nvSpPr>
      <p:spPr/>
    </p:sp>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="5" name="Decoration"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>
    </p:sp>
  </p:spTree></p:cSld>
</p:sldLayout>`

const layout2XML = `<?xml version="1.0" encoding="UTF-8"?>
<p:sldLayout xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld name="Picture with Caption"><p:spTree>
    <p:pic>
      <p:nvPicPr><p:cNvPr id="2" name="Picture Placeholder 1"/><p:cNvPicPr/><p:nvPr><p:ph type="pic" idx="1"/></p:nvPr></p:nvPicPr>
      <p:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="1270000" cy="635000"/></a:xfrm></p:spPr>
    </p:pic>
  </p:spTree></p:cSld>
</p:sldLayout>`

func buildPPTX(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"ppt/presentation.xml":               presentationXML,
		"ppt/slideMasters/slideMaster1.xml":  masterXML,
		"ppt/slideLayouts/slideLayout10.xml": layout2XML,
		"ppt/slideLayouts/slideLayout2.xml":  layout1XML,
		"ppt/slideLayouts/_rels/x.xml.rels":  "<Relationships/>",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadPPTX(t *testing.T) {
	raw := buildPPTX(t)
	cat, err := ReadPPTX(bytes.NewReader(raw), int64(len(raw)), "corp.pptx")
	require.NoError(t, err)
	require.InDelta(t, 960, cat.SlideWidth, 1e-9)
	require.InDelta(t, 540, cat.SlideHeight, 1e-9)
	require.Len(t, cat.Layouts, 2)

	first := cat.Layouts[0]
	require.Equal(t, "Title and Content", first.Name)
	require.Len(t, first.Placeholders, 3)

	title, ok := first.Placeholder(0)
	require.True(t, ok)
	require.Equal(t, deck.PhTitle, title.Type)
	// inherited from the master
	require.InDelta(t, 10515600/EMUPerPoint, title.WidthPt, 1e-9)

	body, ok := first.Placeholder(1)
	require.True(t, ok)
	require.Equal(t, deck.PhObject, body.Type)
	require.InDelta(t, 200, body.WidthPt, 1e-9)
	require.InDelta(t, 100, body.HeightPt, 1e-9)

	num, _ := first.Placeholder(12)
	require.Equal(t, deck.PhSlideNumber, num.Type)

	pic := cat.Layouts[1]
	require.Equal(t, 1, pic.Index)
	require.Equal(t, deck.PhPicture, pic.Placeholders[0].Type)
	require.InDelta(t, 100, pic.Placeholders[0].WidthPt, 1e-9)
}

func TestReadPPTXRejectsGarbage(t *testing.T) {
	_, err := ReadPPTX(bytes.NewReader([]byte("nope")), 4, "x.pptx")
	require.Error(t, err)
}

const yamlCatalog = `
layouts:
  - index: 0
    name: Cover
    placeholders:
      - {index: 0, type: CENTER_TITLE, name: Title 1, width_pt: 700, height_pt: 120}
      - {index: 1, type: SUBTITLE, name: Subtitle 2, width_pt: 700, height_pt: 80}
  - index: 1
    name: Bullets
    placeholders:
      - {index: 0, type: title, name: Title 1, width_pt: 800, height_pt: 90}
      - {index: 1, type: body, name: Body, width_pt: 800, height_pt: 300}
`

func TestLoadLayoutsFromFilesAndCache(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "corp.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(yamlCatalog), 0o644))
	pptx := filepath.Join(dir, "corp.pptx")
	require.NoError(t, os.WriteFile(pptx, buildPPTX(t), 0o644))

	c, err := NewCatalog(4, nil)
	require.NoError(t, err)

	cat, err := c.LoadLayouts(context.Background(), yml)
	require.NoError(t, err)
	require.Equal(t, yml, cat.TemplateRef)
	require.Equal(t, deck.PhCenterTitle, cat.Layouts[0].Placeholders[0].Type)
	require.Equal(t, 1, c.cache.Len())

	_, err = c.LoadLayouts(context.Background(), yml)
	require.NoError(t, err)
	require.Equal(t, 1, c.cache.Len())

	cat, err = c.LoadLayouts(context.Background(), pptx)
	require.NoError(t, err)
	require.Len(t, cat.Layouts, 2)

	_, err = c.LoadLayouts(context.Background(), filepath.Join(dir, "missing.pptx"))
	require.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	_, err := ParseCatalog([]byte(`{"layouts":[{"index":0,"placeholders":[{"index":1},{"index":1}]}]}`), "dup.json")
	require.ErrorContains(t, err, "duplicate placeholder")
	_, err = ParseCatalog([]byte(`layouts: []`), "empty.yaml")
	require.Error(t, err)
}

func TestBuiltin(t *testing.T) {
	c, err := NewCatalog(0, nil)
	require.NoError(t, err)
	cat, err := c.LoadLayouts(context.Background(), "builtin:default")
	require.NoError(t, err)
	require.Len(t, cat.Layouts, 8)
	_, err = c.LoadLayouts(context.Background(), "builtin:neon")
	require.ErrorIs(t, err, ErrUnknownTemplate)
}
