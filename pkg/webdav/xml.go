package webdav

import (
	"fmt"
	"strings"
)

// BuildMultiStatus renders the 207 Multi-Status document for a PROPFIND
// response: one response element per resource, each carrying the full
// property set with a literal 200 OK propstat status.
func BuildMultiStatus(resources []Resource) string {
	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	sb.WriteString("<D:multistatus xmlns:D=\"DAV:\">\n")
	for _, r := range resources {
		writeResponse(&sb, r)
	}
	sb.WriteString("</D:multistatus>")
	return sb.String()
}

func writeResponse(sb *strings.Builder, r Resource) {
	resourceType := ""
	if r.IsCollection {
		resourceType = "<D:collection/>"
	}

	sb.WriteString("  <D:response>\n")
	fmt.Fprintf(sb, "    <D:href>%s</D:href>\n", escapeXML(r.Href))
	sb.WriteString("    <D:propstat>\n")
	sb.WriteString("      <D:prop>\n")
	fmt.Fprintf(sb, "        <D:displayname>%s</D:displayname>\n", escapeXML(r.DisplayName))
	fmt.Fprintf(sb, "        <D:resourcetype>%s</D:resourcetype>\n", resourceType)
	fmt.Fprintf(sb, "        <D:getcontentlength>%d</D:getcontentlength>\n", r.ContentLength)
	fmt.Fprintf(sb, "        <D:getlastmodified>%s</D:getlastmodified>\n", r.FormatLastModified())
	fmt.Fprintf(sb, "        <D:getetag>%s</D:getetag>\n", escapeXML(r.ETag))
	fmt.Fprintf(sb, "        <D:getcontenttype>%s</D:getcontenttype>\n", escapeXML(r.ContentType))
	sb.WriteString("      </D:prop>\n")
	sb.WriteString("      <D:status>HTTP/1.1 200 OK</D:status>\n")
	sb.WriteString("    </D:propstat>\n")
	sb.WriteString("  </D:response>\n")
}

// BuildError renders a minimal multistatus carrying a single status line,
// for property-level failures that must be reported in XML rather than via
// the outer response status.
func BuildError(href string, statusCode int, statusMessage string) string {
	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	sb.WriteString("<D:multistatus xmlns:D=\"DAV:\">\n")
	sb.WriteString("  <D:response>\n")
	fmt.Fprintf(&sb, "    <D:href>%s</D:href>\n", escapeXML(href))
	fmt.Fprintf(&sb, "    <D:status>HTTP/1.1 %d %s</D:status>\n", statusCode, statusMessage)
	sb.WriteString("  </D:response>\n")
	sb.WriteString("</D:multistatus>")
	return sb.String()
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
