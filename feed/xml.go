package feed

import (
	"encoding/xml"
	"time"
)

// xmlComment is the wire shape for polling-based external tools (vMix data
// sources read XML over HTTP).
type xmlComment struct {
	ID          string `xml:"id,attr"`
	Platform    string `xml:"platform,attr"`
	Pinned      bool   `xml:"pinned,attr"`
	Highlighted bool   `xml:"highlighted,attr"`
	Author      string `xml:"author"`
	Message     string `xml:"message"`
	ApprovedAt  string `xml:"approvedAt"`
}

type xmlFeed struct {
	XMLName  xml.Name     `xml:"comments"`
	Count    int          `xml:"count,attr"`
	Comments []xmlComment `xml:"comment"`
}

// XML serializes up to limit buffered comments (pinned-then-newest first)
// for polling consumers. limit <= 0 means the whole buffer.
func (m *Manager) XML(limit int) ([]byte, error) {
	snapshot := m.Feed(limit)
	doc := xmlFeed{Count: len(snapshot), Comments: make([]xmlComment, 0, len(snapshot))}
	for _, e := range snapshot {
		doc.Comments = append(doc.Comments, xmlComment{
			ID:          e.ID,
			Platform:    e.Platform,
			Pinned:      e.Pinned,
			Highlighted: e.Highlighted,
			Author:      e.Author,
			Message:     e.Message,
			ApprovedAt:  e.ApprovedAt.UTC().Format(time.RFC3339),
		})
	}
	return xml.MarshalIndent(doc, "", "  ")
}
