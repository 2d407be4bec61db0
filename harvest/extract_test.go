package harvest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/sosharvest/harvest"
)

func TestExtractTable_SkipsHeaderAndBlankRows(t *testing.T) {
	page := `<html><body><table>
<tr><th>Filing</th><th>Name</th></tr>
<tr><td> 801234567 </td><td>ACME LLC</td></tr>
<tr><td>   </td><td>
</td></tr>
<tr><td>801234568</td><td>BETA INC</td></tr>
</table></body></html>`

	rows, found, err := harvest.ExtractTable(page, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Page)
	assert.Equal(t, []string{"801234567", "ACME LLC"}, rows[0].Columns)
	assert.Equal(t, []string{"801234568", "BETA INC"}, rows[1].Columns)
}

func TestExtractTable_FirstTableWithTwoRows(t *testing.T) {
	page := `<html><body>
<table><tr><td>layout only</td></tr></table>
<table>
<tr><th>Filing</th></tr>
<tr><th>sub header</th></tr>
<tr><td>801234567</td></tr>
</table>
<table><tr><th>x</th></tr><tr><td>other</td></tr></table>
</body></html>`

	rows, found, err := harvest.ExtractTable(page, 3)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"801234567"}, rows[0].Columns)
	assert.Equal(t, 3, rows[0].Page)
}

func TestExtractTable_NoTable(t *testing.T) {
	rows, found, err := harvest.ExtractTable(`<html><body><p>No records found.</p></body></html>`, 1)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, rows)
}

func TestExtractTable_HeaderOnly(t *testing.T) {
	rows, found, err := harvest.ExtractTable(`<table><tr><th>a</th></tr><tr><th>b</th></tr></table>`, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, rows)
}

func TestExtractTable_CellLineBreaks(t *testing.T) {
	page := `<html><body><table>
<tr><th>Agent</th><th>Address</th></tr>
<tr><td>JANE   DOE</td><td>123 MAIN ST<br>AUSTIN TX<br/>
  78701</td></tr>
<tr><td><div>CT CORP</div><div>SYSTEM</div></td><td>  </td></tr>
</table></body></html>`

	rows, found, err := harvest.ExtractTable(page, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"JANE DOE", "123 MAIN ST\nAUSTIN TX\n78701"}, rows[0].Columns)
	assert.Equal(t, []string{"CT CORP\nSYSTEM", ""}, rows[1].Columns)
}
