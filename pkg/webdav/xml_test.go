package webdav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/davshare/davshare/pkg/storage"
)

func TestBuildMultiStatusFile(t *testing.T) {
	meta := &storage.ResourceMetadata{
		Path:         "/srv/data/report.txt",
		IsDirectory:  false,
		Size:         42,
		LastModified: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
	doc := BuildMultiStatus([]Resource{NewResource("/report.txt", "report.txt", meta)})

	assert.Contains(t, doc, `<?xml version="1.0" encoding="utf-8"?>`)
	assert.Contains(t, doc, `<D:multistatus xmlns:D="DAV:">`)
	assert.Contains(t, doc, "<D:href>/report.txt</D:href>")
	assert.Contains(t, doc, "<D:displayname>report.txt</D:displayname>")
	assert.Contains(t, doc, "<D:resourcetype></D:resourcetype>")
	assert.Contains(t, doc, "<D:getcontentlength>42</D:getcontentlength>")
	assert.Contains(t, doc, "<D:getlastmodified>Fri, 15 Mar 2024 10:30:00 GMT</D:getlastmodified>")
	assert.Contains(t, doc, "<D:status>HTTP/1.1 200 OK</D:status>")
	assert.Contains(t, doc, "<D:getcontenttype>application/octet-stream</D:getcontenttype>")
}

func TestBuildMultiStatusCollection(t *testing.T) {
	meta := &storage.ResourceMetadata{
		Path:         "/srv/data/docs",
		IsDirectory:  true,
		LastModified: time.Now(),
	}
	doc := BuildMultiStatus([]Resource{NewResource("/docs", "docs", meta)})

	assert.Contains(t, doc, "<D:resourcetype><D:collection/></D:resourcetype>")
	assert.Contains(t, doc, "<D:getcontenttype>httpd/unix-directory</D:getcontenttype>")
}

func TestBuildMultiStatusEscapesSpecialCharacters(t *testing.T) {
	meta := &storage.ResourceMetadata{
		Path:         "/srv/data/a&b.txt",
		LastModified: time.Now(),
	}
	doc := BuildMultiStatus([]Resource{NewResource("/a&b.txt", `a&b <"c">`, meta)})

	assert.Contains(t, doc, "<D:href>/a&amp;b.txt</D:href>")
	assert.Contains(t, doc, "<D:displayname>a&amp;b &lt;&quot;c&quot;&gt;</D:displayname>")
	assert.NotContains(t, doc, `a&b <"c">`)
}

func TestBuildError(t *testing.T) {
	doc := BuildError("/missing.txt", 404, "Not Found")

	assert.Contains(t, doc, "<D:href>/missing.txt</D:href>")
	assert.Contains(t, doc, "<D:status>HTTP/1.1 404 Not Found</D:status>")
}

func TestGuessContentType(t *testing.T) {
	assert.Equal(t, "text/plain", GuessContentType("notes.txt"))
	assert.Equal(t, "text/html", GuessContentType("index.HTML"))
	assert.Equal(t, "application/json", GuessContentType("/deep/path/data.json"))
	assert.Equal(t, "image/png", GuessContentType("logo.png"))
	assert.Equal(t, "application/octet-stream", GuessContentType("archive.bin"))
	assert.Equal(t, "application/octet-stream", GuessContentType("noextension"))
}
