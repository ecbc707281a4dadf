package posts

import (
	"testing"

	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "Ann_K", SanitizeAuthor("Ann K"))
	assert.Equal(t, "Mary_Jo K", SanitizeAuthor("Mary Jo K"))

	stem := Stem("2026-W07", "Ann K", 1770915600000)
	assert.Equal(t, "2026-W07_Ann_K_1770915600000", stem)
	assert.Equal(t, "2026-W07_Ann_K_1770915600000.json", MetaKey("2026-W07", "Ann K", 1770915600000))
	assert.Equal(t, "2026-W07_Ann_K_1770915600000_chunk2.txt", ChunkKey(stem, 2))
	assert.Equal(t, stem, stemOf(MetaKey("2026-W07", "Ann K", 1770915600000)))
}

func TestIsMetaKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"2026-W07_Ann_K_1770915600000.json", true},
		{"2026-W07_Bo_1.json", true},
		{"2026-W07_Bo_1_chunk0.txt", false},
		{"2026-W07__1.json", false},
		{"2026-W7_Bo_1.json", false},
		{"2026-W07_Bo_x.json", false},
		{"notes.json", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMetaKey(tt.key), tt.key)
	}
}

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"text", `{"type":"text","author":"Ann","content":"hi","timestamp":1,"weekKey":"2026-W07"}`, true},
		{"voice", `{"type":"voice","author":"Bo","chunks":2,"timestamp":1,"weekKey":"2026-W07"}`, true},
		{"not json", `{`, false},
		{"no author", `{"type":"text","timestamp":1,"weekKey":"2026-W07"}`, false},
		{"no timestamp", `{"type":"text","author":"Ann","weekKey":"2026-W07"}`, false},
		{"bad week", `{"type":"text","author":"Ann","timestamp":1,"weekKey":"2026-07"}`, false},
		{"voice without chunks", `{"type":"voice","author":"Bo","timestamp":1,"weekKey":"2026-W07"}`, false},
		{"unknown type", `{"type":"poll","author":"Bo","timestamp":1,"weekKey":"2026-W07"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeRecord(tt.body)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, common.ErrMalformedRecord)
		})
	}
}
