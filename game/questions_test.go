package game

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triviarena/triviarena-server/models"
)

const sampleResponse = `{
	"response_code": 0,
	"results": [
		{"type": "boolean", "difficulty": "easy", "category": "Science",
		 "question": "The sky is blue.", "correct_answer": "True",
		 "incorrect_answers": ["False"]},
		{"type": "multiple", "difficulty": "medium", "category": "Geography",
		 "question": "Capital of Portugal?", "correct_answer": "Lisbon",
		 "incorrect_answers": ["Porto", "Faro", "Braga"]}
	]
}`

func TestStaticProviderCycles(t *testing.T) {
	p := &StaticProvider{Items: []models.TriviaQuestion{
		{Question: "q1", CorrectAnswer: "a1"},
		{Question: "q2", CorrectAnswer: "a2"},
	}}

	qs, err := p.Questions(5)
	require.NoError(t, err)
	require.Len(t, qs, 5)
	assert.Equal(t, "q1", qs[0].Question)
	assert.Equal(t, "q2", qs[1].Question)
	assert.Equal(t, "q1", qs[2].Question)
	assert.Equal(t, "q1", qs[4].Question)
}

func TestStaticProviderEmpty(t *testing.T) {
	p := &StaticProvider{}
	_, err := p.Questions(4)
	assert.Error(t, err)
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleResponse), 0o644))

	p := &FileProvider{Path: path}
	qs, err := p.Questions(4)
	require.NoError(t, err)
	require.Len(t, qs, 4)
	assert.Equal(t, "True", qs[0].CorrectAnswer)
	assert.Equal(t, "Lisbon", qs[1].CorrectAnswer)
	assert.Equal(t, "True", qs[2].CorrectAnswer)
}

func TestFileProviderMissing(t *testing.T) {
	p := &FileProvider{Path: filepath.Join(t.TempDir(), "nope.json")}
	_, err := p.Questions(4)
	assert.Error(t, err)
}

func TestHTTPProvider(t *testing.T) {
	var gotAmount string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAmount = r.URL.Query().Get("amount")
		w.Write([]byte(sampleResponse))
	}))
	defer ts.Close()

	p := NewHTTPProvider(ts.URL)
	qs, err := p.Questions(2)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "2", gotAmount)
	assert.Equal(t, "The sky is blue.", qs[0].Question)
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := NewHTTPProvider(ts.URL)
	_, err := p.Questions(2)
	assert.Error(t, err)
}
