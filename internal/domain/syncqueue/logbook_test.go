package syncqueue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBook_Add(t *testing.T) {
	queueID := uuid.New()
	instanceID := uuid.New()
	book := NewLogBook(queueID, instanceID)
	require.True(t, book.IsEmpty())

	lineID := uuid.New()
	logLine := book.Add("Order 100000251 could not be matched to a local customer", "100000251", &lineID)

	assert.False(t, book.IsEmpty())
	assert.Equal(t, book.ID, logLine.LogBookID)
	assert.Equal(t, "100000251", logLine.RecordKey)
	require.NotNil(t, logLine.QueueLineID)
	assert.Equal(t, lineID, *logLine.QueueLineID)

	book.Add("Payment method unknown", "", nil)
	assert.Len(t, book.Lines, 2)
}
