package bundle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSkillMD = `---
name: react-helper
description: A React component library helper
---

# React Helper

Instructions here.
`

func TestRefFromGitHubURL(t *testing.T) {
	t.Run("converts tree URLs to raw content", func(t *testing.T) {
		ref, err := RefFromGitHubURL("https://github.com/user/repo/tree/main/skills/react/", []string{"examples/usage.md"})
		require.NoError(t, err)
		assert.Equal(t, "https://raw.githubusercontent.com/user/repo/main/skills/react", ref.RawBaseURL)
		assert.Equal(t, []string{"examples/usage.md"}, ref.Files)
	})

	t.Run("rejects empty URL", func(t *testing.T) {
		_, err := RefFromGitHubURL("", nil)
		assert.Error(t, err)
	})

	t.Run("rejects non-github URL", func(t *testing.T) {
		_, err := RefFromGitHubURL("https://example.com/foo", nil)
		assert.Error(t, err)
	})
}

func TestParseMetadata(t *testing.T) {
	t.Run("valid frontmatter", func(t *testing.T) {
		md, err := ParseMetadata([]byte(validSkillMD))
		require.NoError(t, err)
		assert.Equal(t, "react-helper", md.Name)
		assert.Equal(t, "A React component library helper", md.Description)
	})

	t.Run("missing frontmatter", func(t *testing.T) {
		_, err := ParseMetadata([]byte("# Just a heading\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("missing description", func(t *testing.T) {
		_, err := ParseMetadata([]byte("---\nname: x\n---\nbody\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func newRawServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.PathPrefix("/").HandlerFunc(handler)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCompleteBundle(t *testing.T) {
	srv := newRawServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/org/repo/main/skills/react/skill.md":
			w.Write([]byte(validSkillMD))
		case "/org/repo/main/skills/react/examples/usage.md":
			w.Write([]byte("usage"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f := NewFetcher(WithMaxRetries(0))
	blobs, err := f.Fetch(context.Background(), Ref{
		RawBaseURL: srv.URL + "/org/repo/main/skills/react",
		Files:      []string{"examples/usage.md"},
	})
	require.NoError(t, err)

	require.Len(t, blobs, 2)
	assert.Equal(t, SkillFileName, blobs[0].Path, "lowercase skill.md normalized")
	assert.Equal(t, "examples/usage.md", blobs[1].Path)
	assert.Equal(t, []byte("usage"), blobs[1].Content)
}

func TestFetchFallsBackToUppercaseRoot(t *testing.T) {
	srv := newRawServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/skills/x/SKILL.md" {
			w.Write([]byte(validSkillMD))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	f := NewFetcher(WithMaxRetries(0))
	blobs, err := f.Fetch(context.Background(), Ref{RawBaseURL: srv.URL + "/skills/x"})
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, SkillFileName, blobs[0].Path)
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newRawServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(validSkillMD))
	})

	f := NewFetcher(WithMaxRetries(3), WithRetryDelay(0))
	blobs, err := f.Fetch(context.Background(), Ref{RawBaseURL: srv.URL + "/skills/x"})
	require.NoError(t, err)
	assert.Len(t, blobs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := newRawServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	f := NewFetcher(WithMaxRetries(2), WithRetryDelay(0))
	_, err := f.Fetch(context.Background(), Ref{RawBaseURL: srv.URL + "/skills/x"})
	require.Error(t, err)
	// skill.md attempt per retry round; SKILL.md is never reached because the
	// first candidate fails with a transient error.
	assert.Equal(t, int32(3), calls.Load(), "1 initial + 2 retries")
}

func TestFetchNotFoundDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := newRawServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	f := NewFetcher(WithMaxRetries(5), WithRetryDelay(0))
	_, err := f.Fetch(context.Background(), Ref{RawBaseURL: srv.URL + "/skills/x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(2), calls.Load(), "both root candidates tried exactly once")
}

func TestFetchMalformedDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := newRawServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte("no frontmatter at all"))
	})

	f := NewFetcher(WithMaxRetries(5), WithRetryDelay(0))
	_, err := f.Fetch(context.Background(), Ref{RawBaseURL: srv.URL + "/skills/x"})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchIsAllOrNothing(t *testing.T) {
	srv := newRawServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/skills/x/skill.md":
			w.Write([]byte(validSkillMD))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f := NewFetcher(WithMaxRetries(0))
	blobs, err := f.Fetch(context.Background(), Ref{
		RawBaseURL: srv.URL + "/skills/x",
		Files:      []string{"missing/extra.md"},
	})
	require.Error(t, err)
	assert.Nil(t, blobs, "partial bundle must not be returned")
}

func TestFetchHTMLErrorPageTreatedAsMissing(t *testing.T) {
	srv := newRawServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/skills/x/skill.md":
			w.Write([]byte("<!DOCTYPE html>\n<html>not here</html>"))
		case "/skills/x/SKILL.md":
			w.Write([]byte(validSkillMD))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f := NewFetcher(WithMaxRetries(0))
	blobs, err := f.Fetch(context.Background(), Ref{RawBaseURL: srv.URL + "/skills/x"})
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, []byte(validSkillMD), blobs[0].Content)
}

func TestFetchSendsAuthToken(t *testing.T) {
	var gotAuth string
	srv := newRawServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(validSkillMD))
	})

	f := NewFetcher(WithMaxRetries(0), WithAuthToken("gh-token"))
	_, err := f.Fetch(context.Background(), Ref{RawBaseURL: srv.URL + "/skills/x"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer gh-token", gotAuth)
}
