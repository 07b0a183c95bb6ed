package internal

import (
	"fmt"
	"strings"
)

// RenderHex formats w as offset / hex / |ascii| rows. Short last rows are
// padded so the gutter lines up.
func RenderHex(w Window, bytesPerRow int) (string, error) {
	if bytesPerRow <= 0 {
		return "", configError("bytes per row must be > 0, got %d", bytesPerRow)
	}
	var sb strings.Builder
	for i := 0; i < len(w.Data); i += bytesPerRow {
		row := w.Data[i:min(i+bytesPerRow, len(w.Data))]
		fmt.Fprintf(&sb, "%08X  ", w.Offset+int64(i))
		for _, b := range row {
			fmt.Fprintf(&sb, "%02X ", b)
		}
		sb.WriteString(strings.Repeat(" ", (bytesPerRow-len(row))*3))
		sb.WriteString(" |")
		for _, b := range row {
			if b > 0x20 && b < 0x7F {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}
	return sb.String(), nil
}
