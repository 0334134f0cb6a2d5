package filesearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"

	"github.com/local/aigateway/internal/ai"
)

// Operation is a remote long-running indexing job handle.
type Operation struct {
	Name string
	Done bool
}

// GroundingSegment is the span of generated text a citation backs.
type GroundingSegment struct {
	Text string
}

// GroundingSupport ties a segment to the source chunks that ground it.
type GroundingSupport struct {
	Segment      GroundingSegment
	ChunkIndices []int
}

// GroundingChunk is one retrieved source fragment. PageNumber is nil
// when the store did not expose one.
type GroundingChunk struct {
	Title      string
	PageNumber *int
}

// GroundingMetadata is the provider's full citation payload for one
// grounded answer.
type GroundingMetadata struct {
	Supports []GroundingSupport
	Chunks   []GroundingChunk
}

// QueryResult is a grounded answer plus its citation metadata.
type QueryResult struct {
	Answer    string
	Grounding GroundingMetadata
}

// Client is the remote file-search surface the manager drives: store
// creation, upload with a pollable operation handle, and grounded
// generation scoped to one store.
type Client interface {
	CreateStore(ctx context.Context, displayName string) (string, error)
	UploadToStore(ctx context.Context, storeName, displayName string, content []byte) (Operation, error)
	GetOperation(ctx context.Context, name string) (Operation, error)
	Query(ctx context.Context, storeName, question string) (QueryResult, error)
}

const (
	defaultFileSearchBase   = "https://generativelanguage.googleapis.com/v1beta"
	defaultFileSearchUpload = "https://generativelanguage.googleapis.com/upload/v1beta"
)

// GeminiFileSearch implements Client against the Gemini file-search
// REST API.
type GeminiFileSearch struct {
	http       *http.Client
	apiKey     string
	baseURL    string
	uploadURL  string
	queryModel string
}

func NewGeminiFileSearch(queryModel string) *GeminiFileSearch {
	return &GeminiFileSearch{
		http:       &http.Client{},
		apiKey:     os.Getenv("GEMINI_API_KEY"),
		baseURL:    defaultFileSearchBase,
		uploadURL:  defaultFileSearchUpload,
		queryModel: queryModel,
	}
}

// Available reports whether the client has credentials to work with.
func (c *GeminiFileSearch) Available() bool { return c.apiKey != "" }

type fileSearchStoreResp struct {
	Name string `json:"name"`
}

func (c *GeminiFileSearch) CreateStore(ctx context.Context, displayName string) (string, error) {
	body, _ := json.Marshal(map[string]string{"displayName": displayName})
	url := fmt.Sprintf("%s/fileSearchStores?key=%s", c.baseURL, c.apiKey)

	var resp fileSearchStoreResp
	if err := c.doJSON(ctx, http.MethodPost, url, bytes.NewReader(body), "application/json", &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", &ai.ProviderError{Provider: "gemini-filesearch", Message: "store create returned no name"}
	}
	return resp.Name, nil
}

type operationResp struct {
	Name string `json:"name"`
	Done bool   `json:"done"`
}

func (c *GeminiFileSearch) UploadToStore(ctx context.Context, storeName, displayName string, content []byte) (Operation, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHdr := textproto.MIMEHeader{}
	metaHdr.Set("Content-Type", "application/json")
	metaPart, err := mw.CreatePart(metaHdr)
	if err != nil {
		return Operation{}, &ai.ProviderError{Provider: "gemini-filesearch", Message: err.Error()}
	}
	meta, _ := json.Marshal(map[string]any{"file": map[string]string{"displayName": displayName}})
	metaPart.Write(meta)

	fileHdr := textproto.MIMEHeader{}
	fileHdr.Set("Content-Type", "application/pdf")
	filePart, err := mw.CreatePart(fileHdr)
	if err != nil {
		return Operation{}, &ai.ProviderError{Provider: "gemini-filesearch", Message: err.Error()}
	}
	filePart.Write(content)
	mw.Close()

	url := fmt.Sprintf("%s/%s:uploadToFileSearchStore?key=%s", c.uploadURL, storeName, c.apiKey)
	contentType := "multipart/related; boundary=" + mw.Boundary()

	var resp operationResp
	if err := c.doJSON(ctx, http.MethodPost, url, &buf, contentType, &resp); err != nil {
		return Operation{}, err
	}
	return Operation{Name: resp.Name, Done: resp.Done}, nil
}

func (c *GeminiFileSearch) GetOperation(ctx context.Context, name string) (Operation, error) {
	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, name, c.apiKey)

	var resp operationResp
	if err := c.doJSON(ctx, http.MethodGet, url, nil, "", &resp); err != nil {
		return Operation{}, err
	}
	return Operation{Name: resp.Name, Done: resp.Done}, nil
}

// Wire shapes for grounded generation.
type groundedGenResp struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			GroundingSupports []struct {
				Segment struct {
					Text string `json:"text"`
				} `json:"segment"`
				GroundingChunkIndices []int `json:"groundingChunkIndices"`
			} `json:"groundingSupports"`
			GroundingChunks []struct {
				RetrievedContext struct {
					Title      string `json:"title"`
					PageNumber *int   `json:"pageNumber"`
				} `json:"retrievedContext"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

func (c *GeminiFileSearch) Query(ctx context.Context, storeName, question string) (QueryResult, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": question}}},
		},
		"tools": []map[string]any{
			{"file_search": map[string]any{"file_search_store_names": []string{storeName}}},
		},
	}
	body, _ := json.Marshal(payload)
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.queryModel, c.apiKey)

	var resp groundedGenResp
	if err := c.doJSON(ctx, http.MethodPost, url, bytes.NewReader(body), "application/json", &resp); err != nil {
		return QueryResult{}, err
	}
	if len(resp.Candidates) == 0 {
		return QueryResult{}, ai.ErrEmptyResponse
	}

	cand := resp.Candidates[0]
	var out QueryResult
	for _, p := range cand.Content.Parts {
		out.Answer += p.Text
	}

	for _, s := range cand.GroundingMetadata.GroundingSupports {
		out.Grounding.Supports = append(out.Grounding.Supports, GroundingSupport{
			Segment:      GroundingSegment{Text: s.Segment.Text},
			ChunkIndices: s.GroundingChunkIndices,
		})
	}
	for _, ch := range cand.GroundingMetadata.GroundingChunks {
		out.Grounding.Chunks = append(out.Grounding.Chunks, GroundingChunk{
			Title:      ch.RetrievedContext.Title,
			PageNumber: ch.RetrievedContext.PageNumber,
		})
	}
	return out, nil
}

func (c *GeminiFileSearch) doJSON(ctx context.Context, method, url string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &ai.ProviderError{Provider: "gemini-filesearch", Message: err.Error()}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ai.ProviderError{Provider: "gemini-filesearch", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ai.ProviderError{Provider: "gemini-filesearch", StatusCode: resp.StatusCode, Message: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ai.ProviderError{Provider: "gemini-filesearch", Message: "decode response: " + err.Error()}
	}
	return nil
}
