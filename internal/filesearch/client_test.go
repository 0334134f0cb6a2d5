package filesearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileSearch(srv *httptest.Server) *GeminiFileSearch {
	return &GeminiFileSearch{
		http:       srv.Client(),
		apiKey:     "test-key",
		baseURL:    srv.URL,
		uploadURL:  srv.URL + "/upload",
		queryModel: "gemini-2.5-flash",
	}
}

func TestCreateStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fileSearchStores", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "clinical_doc_abc", body["displayName"])
		w.Write([]byte(`{"name":"fileSearchStores/xyz"}`))
	}))
	defer srv.Close()

	c := newTestFileSearch(srv)
	name, err := c.CreateStore(context.Background(), "clinical_doc_abc")
	require.NoError(t, err)
	assert.Equal(t, "fileSearchStores/xyz", name)
}

func TestUploadToStoreMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload/fileSearchStores/xyz:uploadToFileSearchStore", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/related"))
		w.Write([]byte(`{"name":"operations/op-9","done":false}`))
	}))
	defer srv.Close()

	c := newTestFileSearch(srv)
	op, err := c.UploadToStore(context.Background(), "fileSearchStores/xyz", "study.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "operations/op-9", op.Name)
	assert.False(t, op.Done)
}

func TestGetOperation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/operations/op-9", r.URL.Path)
		w.Write([]byte(`{"name":"operations/op-9","done":true}`))
	}))
	defer srv.Close()

	c := newTestFileSearch(srv)
	op, err := c.GetOperation(context.Background(), "operations/op-9")
	require.NoError(t, err)
	assert.True(t, op.Done)
}

func TestQueryParsesGroundingMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req, "tools")

		w.Write([]byte(`{
			"candidates": [{
				"content": {"parts": [{"text": "The study enrolled 57 patients."}]},
				"groundingMetadata": {
					"groundingSupports": [
						{"segment": {"text": "57 patients"}, "groundingChunkIndices": [0]}
					],
					"groundingChunks": [
						{"retrievedContext": {"title": "study.pdf", "pageNumber": 2}}
					]
				}
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestFileSearch(srv)
	res, err := c.Query(context.Background(), "fileSearchStores/xyz", "how many patients?")
	require.NoError(t, err)
	assert.Equal(t, "The study enrolled 57 patients.", res.Answer)
	require.Len(t, res.Grounding.Supports, 1)
	assert.Equal(t, "57 patients", res.Grounding.Supports[0].Segment.Text)
	require.Len(t, res.Grounding.Chunks, 1)
	require.NotNil(t, res.Grounding.Chunks[0].PageNumber)
	assert.Equal(t, 2, *res.Grounding.Chunks[0].PageNumber)
}
