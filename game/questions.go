package game

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/triviarena/triviarena-server/models"
)

// QuestionProvider supplies the questions for one match.
type QuestionProvider interface {
	Questions(n int) ([]models.TriviaQuestion, error)
}

// StaticProvider serves a fixed question list, cycling when asked for more
// than it holds. Used by tests and offline development.
type StaticProvider struct {
	Items []models.TriviaQuestion
}

func (p *StaticProvider) Questions(n int) ([]models.TriviaQuestion, error) {
	if len(p.Items) == 0 {
		return nil, fmt.Errorf("static provider has no questions")
	}
	out := make([]models.TriviaQuestion, n)
	for i := 0; i < n; i++ {
		out[i] = p.Items[i%len(p.Items)]
	}
	return out, nil
}

// FileProvider reads an Open Trivia DB response body from disk.
type FileProvider struct {
	Path string
}

func (p *FileProvider) Questions(n int) ([]models.TriviaQuestion, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}
	return decodeResponse(data, n)
}

// HTTPProvider fetches questions from the Open Trivia DB API.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Questions(n int) ([]models.TriviaQuestion, error) {
	url := fmt.Sprintf("%s?amount=%d", p.BaseURL, n)
	resp, err := p.Client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question API returned status %d", resp.StatusCode)
	}

	var body models.TriviaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding question response: %w", err)
	}
	return questionsFromResponse(body, n)
}

func decodeResponse(data []byte, n int) ([]models.TriviaQuestion, error) {
	var body models.TriviaResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding question response: %w", err)
	}
	return questionsFromResponse(body, n)
}

func questionsFromResponse(body models.TriviaResponse, n int) ([]models.TriviaQuestion, error) {
	if len(body.Results) == 0 {
		return nil, fmt.Errorf("question response contains no results")
	}
	out := make([]models.TriviaQuestion, n)
	for i := 0; i < n; i++ {
		out[i] = body.Results[i%len(body.Results)].ToQuestion()
	}
	return out, nil
}
