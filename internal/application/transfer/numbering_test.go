package transfer_test

import (
	"testing"

	"github.com/jhoicas/Inventario-stock/internal/application/transfer"
	"github.com/stretchr/testify/assert"
)

func TestFormatTransferNumber(t *testing.T) {
	assert.Equal(t, "TRF-2026-0001", transfer.FormatTransferNumber("TRF", 2026, 1))
	assert.Equal(t, "TRF-2026-0420", transfer.FormatTransferNumber("TRF", 2026, 420))
	assert.Equal(t, "TRF-2026-12345", transfer.FormatTransferNumber("TRF", 2026, 12345))
}

func TestParseTransferSeq(t *testing.T) {
	tests := []struct {
		number string
		want   int
		ok     bool
	}{
		{"TRF-2026-0042", 42, true},
		{"TRF-2026-10000", 10000, true},
		{"TRF-2025-0042", 0, false},
		{"TRF-2026-", 0, false},
		{"TRF-2026-00x1", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			got, ok := transfer.ParseTransferSeq(tt.number, "TRF", 2026)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextTransferNumber(t *testing.T) {
	assert.Equal(t, "TRF-2026-0001", transfer.NextTransferNumber("", "TRF", 2026, 0))
	assert.Equal(t, "TRF-2026-0008", transfer.NextTransferNumber("", "TRF", 2026, 7))
	assert.Equal(t, "TRF-2026-0043", transfer.NextTransferNumber("TRF-2026-0042", "TRF", 2026, 0))
	assert.Equal(t, "TRF-2026-0052", transfer.NextTransferNumber("TRF-2026-0042", "TRF", 2026, 9))
}
