// README: Spreadsheet export tests.
package order

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ordertrack/internal/types"
)

func TestExportXLSX(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	// more orders than one page so the export has to walk pages
	total := 2*MaxListLimit + 11
	for i := 0; i < total; i++ {
		status := StatusPending
		if i%2 == 0 {
			status = StatusPreparing
		}
		h.seed(t, types.ID(fmt.Sprintf("o%03d", i)), status, "x@example.com", "")
		h.now = h.now.Add(time.Second)
	}

	var buf bytes.Buffer
	n, err := h.svc.ExportXLSX(ctx, Filter{Statuses: []Status{StatusPreparing}}, &buf)
	require.NoError(t, err)
	wantRows := (total + 1) / 2
	assert.Equal(t, wantRows, n)

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(exportOrdersSheet)
	require.NoError(t, err)
	require.Len(t, rows, wantRows+1)
	assert.Equal(t, "Order Number", rows[0][0])
	assert.Equal(t, "preparing", rows[1][6])

	summary, err := book.GetRows(exportSummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, len(AllStatuses)+1)
	assert.Equal(t, []string{"pending", fmt.Sprint(total / 2)}, summary[1])
	assert.Equal(t, []string{"preparing", fmt.Sprint(wantRows)}, summary[3])
}
