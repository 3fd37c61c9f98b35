package netx

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipartBody(t *testing.T) {
	file := []byte("GIF89a fake clip")

	var (
		gotField string
		gotFile  []byte
		gotName  string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotField = r.FormValue("challenge_id")
		f, fh, err := r.FormFile("video")
		require.NoError(t, err)
		defer f.Close()
		gotName = fh.Filename
		gotFile, _ = io.ReadAll(f)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	body, contentType, err := MultipartBody(map[string]string{"challenge_id": "abc"}, "video", "clip.gif", file)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL, contentType, body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc", gotField)
	assert.Equal(t, "clip.gif", gotName)
	assert.Equal(t, file, gotFile)
}

func TestIsUnavailable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	_, err = http.Get("http://" + addr + "/api/health")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))

	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(errors.New("bad request")))
}
