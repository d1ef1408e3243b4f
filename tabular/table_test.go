package tabular

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() *Table {
	t := New("地址", "科目", "原始订单")
	t.Append([]string{"朝阳区", "数学", "初二数学 朝阳区"})
	t.Append([]string{"海淀区", "物理"})
	return t
}

func TestTable(t *testing.T) {
	tbl := sample()

	assert.Equal(t, []string{"海淀区", "物理", ""}, tbl.Rows[1], "short rows are padded")
	assert.Equal(t, 1, tbl.ColumnIndex("科目"))
	assert.Equal(t, -1, tbl.ColumnIndex("价格"))
	assert.Equal(t, []string{"价格", "时间"}, tbl.MissingColumns([]string{"地址", "价格", "时间"}))
	assert.Equal(t, "朝阳区", tbl.Value(0, "地址"))
	assert.Equal(t, "", tbl.Value(5, "地址"))

	require.NoError(t, tbl.AddColumn("通勤时间", []string{"12 分钟", "error: x"}))
	assert.Equal(t, "通勤时间", tbl.Columns[3])
	assert.Equal(t, "error: x", tbl.Rows[1][3])

	assert.ErrorIs(t, tbl.AddColumn("bad", []string{"one"}), ErrColumnLength)
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("orders.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = FormatOf("orders.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = FormatOf("orders.xls")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write("out.xlsx", &buf, sample()))

	got, err := Read("out.xlsx", &buf)
	require.NoError(t, err)
	assert.Equal(t, sample().Columns, got.Columns)
	assert.Equal(t, sample().Rows, got.Rows)
}

func TestReadXLSX_SkipsBlankRowsAndTrimsHeader(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{" 地址 ", "科目"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"朝阳区", "数学"}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := ReadXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"地址", "科目"}, got.Columns)
	assert.Equal(t, [][]string{{"朝阳区", "数学"}}, got.Rows)
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, sample().Columns, got.Columns)
	assert.Equal(t, sample().Rows, got.Rows)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyTable)
}
