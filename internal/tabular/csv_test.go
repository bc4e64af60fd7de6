package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCSV_Basic(t *testing.T) {
	tbl, err := decodeCSV([]byte("region,quarter,sales\nNorth,Q1,100.5\nSouth,Q1,\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "quarter", "sales"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, Row{"region": "North", "quarter": "Q1", "sales": 100.5}, tbl.Rows[0])
	assert.Equal(t, Row{"region": "South", "quarter": "Q1", "sales": nil}, tbl.Rows[1])
}

func TestDecodeCSV_DelimiterSniffing(t *testing.T) {
	tests := map[string]string{
		"semicolon": "a;b;c\n1;2;3\n4;5;6\n",
		"tab":       "a\tb\tc\n1\t2\t3\n",
		"pipe":      "a|b|c\n1|2|3\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			tbl, err := decodeCSV([]byte(input))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, tbl.Columns)
			assert.Equal(t, 1.0, tbl.Rows[0]["a"])
		})
	}
}

func TestDecodeCSV_RaggedRows(t *testing.T) {
	tbl, err := decodeCSV([]byte("a,b\n1\n2,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "column_3"}, tbl.Columns)
	assert.Equal(t, Row{"a": 1.0, "b": nil, "column_3": nil}, tbl.Rows[0])
	assert.Equal(t, Row{"a": 2.0, "b": 3.0, "column_3": 4.0}, tbl.Rows[1])
}

func TestDecodeCSV_DuplicateAndBlankHeaders(t *testing.T) {
	tbl, err := decodeCSV([]byte("name,,name\nx,y,z\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "column_2", "name_2"}, tbl.Columns)
	assert.Equal(t, "z", tbl.Rows[0]["name_2"])
}

func TestDecodeCSV_BOMAndLegacyEncoding(t *testing.T) {
	tbl, err := decodeCSV([]byte("\xEF\xBB\xBFcity,pop\nZurich,1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"city", "pop"}, tbl.Columns)

	// "Montréal" in Windows-1252.
	tbl, err = decodeCSV([]byte("city,pop\nMontr\xe9al,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "Montréal", tbl.Rows[0]["city"])
}

func TestDecodeCSV_HeaderOnly(t *testing.T) {
	tbl, err := decodeCSV([]byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	assert.Empty(t, tbl.Rows)
}

func TestDecodeCSV_Malformed(t *testing.T) {
	for name, input := range map[string]string{
		"html page": "<html><head><title>404</title></head></html>",
		"blank":     "\n\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeCSV([]byte(input))
			var mde *MalformedDataError
			assert.ErrorAs(t, err, &mde)
		})
	}
}

func TestSniffDelimiter_CommaDefault(t *testing.T) {
	assert.Equal(t, ',', sniffDelimiter([]byte("single\nvalue\n")))
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b\n1;2\n")))
}
