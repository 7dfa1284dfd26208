package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockRoundTripper is a tiny in-memory S3: Head, Get, Put, Delete and
// ListObjectsV2 over path-style URLs.
type mockRoundTripper struct {
	mu    sync.Mutex
	state map[string]stored
}

type stored struct {
	body        []byte
	contentType string
}

func emptyResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && strings.Contains(req.URL.RawQuery, "list-type=2") {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range m.state {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-10-18T00:00:00Z</LastModified></Contents>",
				k, len(m.state[k].body))
		}
		b.WriteString("</ListBucketResult>")
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(b.String())),
			Header: http.Header{"Content-Type": {"application/xml"}}}, nil
	}

	switch req.Method {
	case http.MethodHead, http.MethodGet:
		st, ok := m.state[key]
		if !ok {
			return emptyResponse(http.StatusNotFound), nil
		}
		body := st.body
		if req.Method == http.MethodHead {
			body = nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
			"Content-Length": {fmt.Sprintf("%d", len(st.body))},
			"Content-Type":   {st.contentType},
			"ETag":           {`"etag123"`},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
		}}, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		if _, exists := m.state[key]; !exists {
			m.state[key] = stored{body: body, contentType: req.Header.Get("Content-Type")}
		}
		resp := emptyResponse(http.StatusOK)
		resp.Header.Set("ETag", `"etag123"`)
		return resp, nil
	case http.MethodDelete:
		delete(m.state, key)
		return emptyResponse(http.StatusNoContent), nil
	}
	return emptyResponse(http.StatusNotImplemented), nil
}

// decodeChunked unwraps a single-chunk aws-chunked payload.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.SplitN(string(b), "\r\n", 3)
	if len(parts) < 3 {
		return nil, false
	}
	var size int
	if _, err := fmt.Sscanf(parts[0], "%x", &size); err != nil {
		return nil, false
	}
	rest := parts[1] + "\r\n" + parts[2]
	if size > len(rest) {
		return nil, false
	}
	return []byte(rest[:size]), true
}

func newMockS3(t *testing.T) (*S3, *mockRoundTripper) {
	t.Helper()
	rt := &mockRoundTripper{state: make(map[string]stored)}
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("aws config: %v", err)
	}
	store := NewS3FromConfig(awsCfg, S3Config{Bucket: "test-bucket", Endpoint: "https://mock.s3.local", PathStyle: true},
		func(o *s3.Options) {
			o.HTTPClient = &http.Client{Transport: rt}
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
	return store, rt
}

func TestS3_BasicFlow(t *testing.T) {
	store, _ := newMockS3(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "bulkindex/run-1/MGI_Reference_Assoc.bcp", strings.NewReader("1000|501\n"), PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Key != "bulkindex/run-1/MGI_Reference_Assoc.bcp" || info.ContentType != "text/plain" {
		t.Errorf("Put() info = %+v", info)
	}

	if _, err := store.Put(ctx, "bulkindex/run-1/MGI_Reference_Assoc.bcp", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Error("duplicate Put() error = nil")
	}

	_, rc, err := store.Get(ctx, "bulkindex/run-1/MGI_Reference_Assoc.bcp")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "1000|501\n" {
		t.Errorf("Get() = %q", data)
	}

	list, err := store.List(ctx, "bulkindex/run-1/")
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %+v, %v", list, err)
	}

	if ok, err := store.Delete(ctx, "bulkindex/run-1/MGI_Reference_Assoc.bcp"); err != nil || !ok {
		t.Errorf("Delete() = %v, %v", ok, err)
	}
}

func TestS3_MissingObject(t *testing.T) {
	store, _ := newMockS3(t)
	ctx := context.Background()

	if _, err := store.Head(ctx, "nope"); !isNotFound(err) {
		t.Errorf("Head() error = %v, want ErrNotFound", err)
	}
	if _, _, err := store.Get(ctx, "nope"); !isNotFound(err) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestS3_NewRequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Error("NewS3() without bucket: error = nil")
	}
}
