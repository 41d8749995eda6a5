package triage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetclinic-booking/internal/model"
)

func fakeGemini(t *testing.T, reply string, status int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "key-1", r.Header.Get("x-goog-api-key"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)

		var req generateRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
		assert.Contains(t, req.Contents[0].Parts[0].Text, `"id":"dermatology"`)

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": reply}}}},
			},
		})
	}))
}

func newAnalyzer(t *testing.T, url string) *Analyzer {
	t.Helper()
	a, err := New(Config{APIKey: "key-1", Model: "gemini-test", Endpoint: url}, model.Departments)
	require.NoError(t, err)
	return a
}

func TestAnalyze(t *testing.T) {
	var calls int32
	srv := fakeGemini(t, `{"departmentId":"dermatology","reason":"itchy skin"}`, http.StatusOK, &calls)
	defer srv.Close()
	a := newAnalyzer(t, srv.URL)

	r, err := a.Analyze(context.Background(), "My dog keeps scratching")
	require.NoError(t, err)
	assert.Equal(t, "dermatology", r.DepartmentID)
	assert.Equal(t, "Dermatology", r.DepartmentName)
	assert.Equal(t, "itchy skin", r.Reason)

	// memoised on normalised text
	_, err = a.Analyze(context.Background(), "  my dog   keeps SCRATCHING ")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnalyzeNoRecommendation(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		status int
	}{
		{"unknown department", `{"departmentId":"cardiology","reason":"x"}`, http.StatusOK},
		{"not json", `maybe dermatology?`, http.StatusOK},
		{"server error", ``, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := fakeGemini(t, tt.reply, tt.status, &calls)
			defer srv.Close()

			_, err := newAnalyzer(t, srv.URL).Analyze(context.Background(), "vomiting")
			assert.ErrorIs(t, err, ErrNoRecommendation)
		})
	}
}

func TestAnalyzeInputAndConfig(t *testing.T) {
	a := newAnalyzer(t, "http://127.0.0.1:0")
	_, err := a.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptySymptoms)

	off, err := New(Config{Model: "m"}, model.Departments)
	require.NoError(t, err)
	assert.False(t, off.Enabled())
	_, err = off.Analyze(context.Background(), "limping")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnalyzeTruncatesOnRunes(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt = req.Contents[0].Parts[0].Text
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": `{"departmentId":"general","reason":"x"}`}}}},
			},
		})
	}))
	defer srv.Close()
	a := newAnalyzer(t, srv.URL)

	_, err := a.Analyze(context.Background(), strings.Repeat("猫", maxSymptoms+7))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(prompt))
	assert.NotContains(t, prompt, `\x`)
	assert.Equal(t, maxSymptoms, strings.Count(prompt, "猫"))
}
