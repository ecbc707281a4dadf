package gist

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	c, err := New(Config{APIBase: ts.URL, GistID: "g1", Token: "secret"}, nil)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresIDAndToken(t *testing.T) {
	_, err := New(Config{GistID: "g1"}, nil)
	require.Error(t, err)
	_, err = New(Config{Token: "t"}, nil)
	require.Error(t, err)
}

func TestRead_ParsesFiles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/gists/g1", r.URL.Path)
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		_, _ = w.Write([]byte(`{
			"id": "g1",
			"files": {
				"2026-W07_Ann_1.json": {"filename": "2026-W07_Ann_1.json", "content": "{}", "size": 2, "raw_url": "https://raw/1"},
				"2026-W07_Ann_1_chunk0.txt": {"filename": "2026-W07_Ann_1_chunk0.txt", "content": "QUJD", "truncated": true, "size": 900000, "raw_url": "https://raw/2"}
			}
		}`))
	})

	snap, err := c.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Files, 2)

	chunk := snap.Files["2026-W07_Ann_1_chunk0.txt"]
	assert.True(t, chunk.Truncated)
	assert.Equal(t, "https://raw/2", chunk.RawURL)
	assert.EqualValues(t, 900000, chunk.Size)
	assert.Equal(t, "{}", snap.Files["2026-W07_Ann_1.json"].Content)
}

func TestRead_FailureIsStoreUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Read(context.Background())
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestRead_BadJSONIsStoreUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"files": [`))
	})

	_, err := c.Read(context.Background())
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestWrite_SendsOnePatchWithNullDeletes(t *testing.T) {
	calls := 0
	var got map[string]map[string]*struct {
		Content string `json:"content"`
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &got))
		_, _ = w.Write([]byte(`{}`))
	})

	m := store.Mutations{}
	m.Put("a.json", `{"type":"text"}`)
	m.Put("a_chunk0.txt", "QUJD")
	m.Delete("old.json")
	require.NoError(t, c.Write(context.Background(), m))

	assert.Equal(t, 1, calls)
	files := got["files"]
	require.Len(t, files, 3)
	assert.Equal(t, `{"type":"text"}`, files["a.json"].Content)
	assert.Equal(t, "QUJD", files["a_chunk0.txt"].Content)
	v, ok := files["old.json"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestWrite_EmptyBatchIsNoop(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s %s", r.Method, r.URL)
	})
	require.NoError(t, c.Write(context.Background(), store.Mutations{}))
}

func TestWrite_FailureIsStoreUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	m := store.Mutations{}
	m.Put("a.json", "{}")
	err := c.Write(context.Background(), m)
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestFetchRaw(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/raw/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("QUJDRA==\n"))
	})

	text, err := c.FetchRaw(context.Background(), c.base+"/raw/chunk")
	require.NoError(t, err)
	assert.Equal(t, "QUJDRA==\n", text)

	_, err = c.FetchRaw(context.Background(), c.base+"/raw/missing")
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
}
