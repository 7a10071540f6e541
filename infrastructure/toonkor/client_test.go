package toonkor

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tkcollect/domain/manhwa"
)

const testSeriesID = "/webtoon/test-series"

// fakeMirror serves a series page with two episodes and chapter pages whose
// image list is hidden in the base64 toon_img blob, the way the real site
// does it.
func fakeMirror(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc(testSeriesID, func(w http.ResponseWriter, r *http.Request) {
		// Newest episode first.
		fmt.Fprint(w, `<html><body><table>
			<tr><td class="content__title" data-role="/webtoon/test-series_2.html">2</td></tr>
			<tr><td class="content__title" data-role="/webtoon/test-series_1.html">1</td></tr>
		</table></body></html>`)
	})

	chapterPage := func(images string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			blob := base64.StdEncoding.EncodeToString([]byte(images))
			fmt.Fprintf(w, `<html><body><script>var toon_img = '%s';</script></body></html>`, blob)
		}
	}
	mux.HandleFunc("/webtoon/test-series_1.html",
		chapterPage(`<img src="/img/a1.jpg"><img src="/img/a2.jpg">`))
	mux.HandleFunc("/webtoon/test-series_2.html",
		chapterPage(`<img src="/img/b1.jpg">`))

	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "image-bytes:%s", r.URL.Path)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_DownloadStoresPagesInOrder(t *testing.T) {
	server := fakeMirror(t)
	mediaDir := t.TempDir()
	client := NewClient(server.URL, mediaDir)

	// Index 0 is the oldest episode despite the newest-first listing.
	pages, err := client.Download(context.Background(), testSeriesID, 0)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, "001.jpg", filepath.Base(pages[0]))
	assert.Equal(t, "002.jpg", filepath.Base(pages[1]))

	content, err := os.ReadFile(pages[0])
	require.NoError(t, err)
	assert.Equal(t, "image-bytes:/img/a1.jpg", string(content))
}

func TestClient_DownloadUnknownChapter(t *testing.T) {
	server := fakeMirror(t)
	client := NewClient(server.URL, t.TempDir())

	_, err := client.Download(context.Background(), testSeriesID, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chapter 7")
}

func TestClient_PagesReadsLibraryCopy(t *testing.T) {
	server := fakeMirror(t)
	mediaDir := t.TempDir()
	client := NewClient(server.URL, mediaDir)

	downloaded, err := client.Download(context.Background(), testSeriesID, 1)
	require.NoError(t, err)

	pages, err := client.Pages(testSeriesID, 1)
	require.NoError(t, err)
	assert.Equal(t, downloaded, pages)
}

func TestClient_PagesWithoutDownload(t *testing.T) {
	client := NewClient("http://unused", t.TempDir())

	_, err := client.Pages(testSeriesID, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no downloaded pages")
}

func TestCleaner_DeletesOnlyTargetClass(t *testing.T) {
	mediaDir := t.TempDir()
	raw := ChapterPath(mediaDir, testSeriesID, 1, rawDir)
	translated := ChapterPath(mediaDir, testSeriesID, 1, translatedDir)
	for _, dir := range []string{raw, translated} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "001.jpg"), []byte("x"), 0o644))
	}

	cleaner := NewCleaner(mediaDir)
	require.NoError(t, cleaner.Delete(context.Background(), testSeriesID, 1, manhwa.ArtifactDownloaded))

	assert.NoDirExists(t, raw)
	assert.DirExists(t, translated, "the other artifact class must survive")
}

func TestCleaner_PrunesEmptyChapterDir(t *testing.T) {
	mediaDir := t.TempDir()
	raw := ChapterPath(mediaDir, testSeriesID, 2, rawDir)
	require.NoError(t, os.MkdirAll(raw, 0o755))

	cleaner := NewCleaner(mediaDir)
	require.NoError(t, cleaner.Delete(context.Background(), testSeriesID, 2, manhwa.ArtifactDownloaded))

	assert.NoDirExists(t, filepath.Dir(raw))
}

func TestCleaner_MissingArtifactsIsNotAnError(t *testing.T) {
	cleaner := NewCleaner(t.TempDir())
	assert.NoError(t, cleaner.Delete(context.Background(), testSeriesID, 3, manhwa.ArtifactTranslated))
}
