package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVOrdersCellsByHeader(t *testing.T) {
	data := Dataset{Headers: []string{"kind", "studentId", "days"}}
	data.Append(map[string]string{"studentId": "s-1", "kind": "breach", "days": "3", "extra": "ignored"})
	data.Append(map[string]string{"kind": "expiring", "studentId": "s-2, jr"})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, data))
	assert.Equal(t, "kind,studentId,days\nbreach,s-1,3\nexpiring,\"s-2, jr\",\n", buf.String())
}

func TestWriteCSVRequiresHeaders(t *testing.T) {
	assert.Error(t, WriteCSV(&bytes.Buffer{}, Dataset{}))
}
