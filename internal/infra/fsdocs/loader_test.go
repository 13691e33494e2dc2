package fsdocs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadReadsMarkdownAndText(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dr_smith.md", "# Dr. Smith\nTeaches ML.")
	writeFile(t, dir, "timings.txt", "The office opens at nine.")
	writeFile(t, dir, "ignored.pdf", "binary")

	docs, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byID := map[string]string{}
	for _, doc := range docs {
		byID[doc.ID] = doc.Text
	}
	assert.Contains(t, byID["dr_smith"], "Teaches ML.")
	assert.Contains(t, byID["timings"], "office opens")
}

func TestLoadAppliesMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dr_smith.md", "Dr. Smith teaches ML.")
	writeFile(t, dir, "metadata.json", `{
		"dr_smith.md": {
			"title": "Dr. Smith",
			"tags": ["faculty", "ml"],
			"summary": "Profile of Dr. Smith",
			"entity": "dr-smith"
		}
	}`)

	docs, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "dr_smith", doc.ID)
	assert.Equal(t, "dr-smith", doc.SourceEntity)
	assert.Equal(t, "Dr. Smith", doc.Metadata["title"])
	assert.Equal(t, "Profile of Dr. Smith", doc.Metadata["summary"])
	assert.Equal(t, "faculty,ml", doc.Metadata["tags"])
	assert.Equal(t, "dr_smith.md", doc.Metadata["filename"])
}

func TestLoadWalksSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "faculty"), 0o755))
	writeFile(t, dir, "labs.md", "The robotics lab is in block A.")
	writeFile(t, dir, filepath.Join("faculty", "dr_smith.md"), "Dr. Smith teaches ML.")
	writeFile(t, dir, "metadata.json", `{
		"faculty/dr_smith.md": {"entity": "dr-smith"}
	}`)

	docs, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byID := map[string]string{}
	for _, doc := range docs {
		byID[doc.ID] = doc.SourceEntity
	}
	assert.Equal(t, "dr-smith", byID["faculty/dr_smith"])
	assert.Contains(t, byID, "labs")
}

func TestLoadWithoutMetadataDefaultsEntityToStem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "labs.md", "The robotics lab is in block A.")

	docs, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "labs", docs[0].SourceEntity)
}

func TestLoadRejectsMalformedMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", "content")
	writeFile(t, dir, "metadata.json", "{not json")

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}
