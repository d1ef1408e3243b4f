package document

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractText_Docx(t *testing.T) {
	data := buildDocx(t,
		`<w:p><w:r><w:t>订单编号：</w:t></w:r><w:r><w:t xml:space="preserve">1001 </w:t></w:r></w:p>`+
			`<w:p/>`+
			`<w:p><w:r><w:t>地址：海淀区</w:t><w:tab/><w:t>高三数学</w:t></w:r></w:p>`)

	text, err := ExtractText("orders.DOCX", data)
	require.NoError(t, err)
	assert.Equal(t, "订单编号：1001 \n\n地址：海淀区\t高三数学", text)
}

func TestExtractText_Txt(t *testing.T) {
	text, err := ExtractText("orders.txt", []byte("\xef\xbb\xbf第一单\n第二单"))
	require.NoError(t, err)
	assert.Equal(t, "第一单\n第二单", text)

	_, err = ExtractText("bad.txt", []byte{0xff, 0xfe})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtractText_Errors(t *testing.T) {
	_, err := ExtractText("legacy.doc", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ExtractText("noext", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ExtractText("broken.docx", []byte("not a zip"))
	assert.ErrorIs(t, err, ErrMalformed)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, zw.Close())
	_, err = ExtractText("empty.docx", buf.Bytes())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed("a.docx"))
	assert.True(t, Allowed("A.TXT"))
	assert.False(t, Allowed("a.doc"))
	assert.False(t, Allowed("a.pdf"))
	assert.False(t, Allowed("docx"))
}
