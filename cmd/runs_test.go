package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/pim-enrich/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	done := now.Add(1500 * time.Millisecond)
	runs := []model.Run{
		{
			ID:                "abc12345-6789-0000-0000-000000000000",
			ProductUUID:       "p-1",
			ProductIdentifier: "SKU-1",
			Kind:              model.RunKindExtract,
			Status:            model.RunStatusSucceeded,
			PromptID:          "technical",
			Proposals:         7,
			Selected:          3,
			StartedAt:         now,
			FinishedAt:        &done,
		},
		{
			ID:          "def12345-6789-0000-0000-000000000000",
			ProductUUID: "0f5e1b2c-aaaa-bbbb-cccc-000000000000",
			Kind:        model.RunKindSave,
			Status:      model.RunStatusFailed,
			ErrorKind:   model.KindConflict,
			StartedAt:   now,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "PRODUCT")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "SKU-1")
	assert.Contains(t, output, "technical")
	assert.Contains(t, output, "succeeded")
	assert.Contains(t, output, "1.5s")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "0f5e1b2c")
	assert.Contains(t, output, "conflict")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
