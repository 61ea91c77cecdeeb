// SPDX-License-Identifier: MIT

// Package playlist serializes channel lists into the extended M3U wire format.
//
// The output is consumed byte-for-byte by third-party TV players: the writer
// is a pure formatting stage with no sorting, filtering or clock access.
// Callers provide channels already filtered to active ones and sorted by
// (group, order).
package playlist

import (
	"bytes"
	"fmt"
	"io"

	"github.com/chandir/chandir/internal/types"
)

// ContentType is the MIME type for M3U playlist responses.
const ContentType = "audio/x-mpegurl"

// WriteM3U writes the extended-M3U representation of channels to w.
// playlistName is optional; when non-empty it is emitted as a #PLAYLIST
// directive after the header. An empty channel slice yields a valid minimal
// playlist consisting of the header only.
func WriteM3U(w io.Writer, channels []types.Channel, playlistName string) error {
	buf := &bytes.Buffer{}
	buf.WriteString("#EXTM3U\n")
	if playlistName != "" {
		fmt.Fprintf(buf, "#PLAYLIST:%s\n", playlistName)
	}
	for _, ch := range channels {
		buf.WriteByte('\n')
		writeExtinf(buf, ch)
		buf.WriteString(ch.ChannelURL)
		buf.WriteByte('\n')
	}
	if len(channels) > 0 {
		buf.WriteByte('\n')
	}
	_, err := io.Copy(w, buf)
	return err
}

// writeExtinf emits one #EXTINF line. Attributes with empty source values are
// omitted entirely rather than emitted as empty-quoted pairs.
func writeExtinf(buf *bytes.Buffer, ch types.Channel) {
	buf.WriteString("#EXTINF:-1")
	writeAttr(buf, "tvg-id", ch.ChannelID)
	writeAttr(buf, "tvg-name", ch.DisplayTvgName())
	writeAttr(buf, "tvg-logo", ch.Logo())
	writeAttr(buf, "group-title", ch.ChannelGroup)
	buf.WriteByte(',')
	buf.WriteString(ch.ChannelName)
	buf.WriteByte('\n')
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(buf, ` %s="%s"`, name, value)
}

// ErrorBody returns a parse-safe M3U body carrying an error marker, so TV
// players fed a failed lookup still see a well-formed playlist header.
func ErrorBody(reason string) string {
	return "#EXTM3U\n#ERROR:" + reason
}
