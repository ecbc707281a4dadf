package posts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/week"
)

// record is the JSON body of a metadata file.
type record struct {
	Type      Kind   `json:"type"`
	Author    string `json:"author"`
	Content   string `json:"content,omitempty"`
	Chunks    int    `json:"chunks,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Timestamp int64  `json:"timestamp"`
	WeekKey   string `json:"weekKey"`
}

// encodeRecord renders r as 2-space indented JSON without HTML escaping,
// so '<', '>' and '&' are stored as typed.
func encodeRecord(r record) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func decodeRecord(content string) (record, error) {
	var r record
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return r, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
	}
	if r.Author == "" || r.Timestamp <= 0 {
		return r, fmt.Errorf("%w: missing author or timestamp", common.ErrMalformedRecord)
	}
	if _, err := week.Parse(r.WeekKey); err != nil {
		return r, fmt.Errorf("%w: week %q", common.ErrMalformedRecord, r.WeekKey)
	}
	switch r.Type {
	case KindText:
	case KindVoice:
		if r.Chunks < 1 {
			return r, fmt.Errorf("%w: voice post declares %d chunks", common.ErrMalformedRecord, r.Chunks)
		}
	default:
		return r, fmt.Errorf("%w: unknown type %q", common.ErrMalformedRecord, r.Type)
	}
	return r, nil
}
