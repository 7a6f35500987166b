package figma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Ref
		err  bool
	}{
		{"file link", "https://www.figma.com/file/AbC123/My-Design", Ref{FileKey: "AbC123"}, false},
		{"design link with node", "https://www.figma.com/design/Key9/Name?node-id=12-34&t=x", Ref{FileKey: "Key9", NodeID: "12:34"}, false},
		{"proto link colon node", "https://figma.com/proto/P1/x?node-id=1%3A2", Ref{FileKey: "P1", NodeID: "1:2"}, false},
		{"missing key", "https://www.figma.com/file/", Ref{}, true},
		{"other host path", "https://example.com/about", Ref{}, true},
		{"not a url", "figma", Ref{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.url)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newFigmaServer(t *testing.T, filesBody string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/files/{key}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Figma-Token") != "tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(filesBody))
	})
	mux.HandleFunc("GET /v1/images/{key}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "png", r.URL.Query().Get("format"))
		assert.Equal(t, "2", r.URL.Query().Get("scale"))
		id := r.URL.Query().Get("ids")
		_, _ = w.Write([]byte(`{"err":null,"images":{"` + id + `":"` + srv.URL + `/render.png"}}`))
	})
	mux.HandleFunc("GET /render.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchImage_FirstFrame(t *testing.T) {
	srv := newFigmaServer(t, `{"document":{"children":[{"children":[{"id":"5:7"}]}]}}`)
	c := NewClient(srv.URL, srv.Client())

	img, err := c.FetchImage(context.Background(), Ref{FileKey: "abc"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nfake"), img.Data)
}

func TestFetchImage_ExplicitNode(t *testing.T) {
	srv := newFigmaServer(t, `{}`)
	c := NewClient(srv.URL, srv.Client())

	img, err := c.FetchImage(context.Background(), Ref{FileKey: "abc", NodeID: "1:2"}, "tok")
	require.NoError(t, err)
	assert.NotEmpty(t, img.Data)
}

func TestFirstFrameID_NoFrame(t *testing.T) {
	srv := newFigmaServer(t, `{"document":{"children":[]}}`)
	c := NewClient(srv.URL, srv.Client())

	_, err := c.FirstFrameID(context.Background(), "abc", "tok")
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestFirstFrameID_BadToken(t *testing.T) {
	srv := newFigmaServer(t, `{}`)
	c := NewClient(srv.URL, srv.Client())

	_, err := c.FirstFrameID(context.Background(), "abc", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestRenderURL_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"err":null,"images":{"1:2":null}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	_, err := c.RenderURL(context.Background(), "abc", "1:2", "tok")
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", nil)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.NotNil(t, c.http)
}
