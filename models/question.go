package models

// TriviaQuestion is one question/answer pair used by the match round loop.
type TriviaQuestion struct {
	Question      string
	CorrectAnswer string
}

// TriviaResponse mirrors the Open Trivia DB API response body.
type TriviaResponse struct {
	ResponseCode int            `json:"response_code"`
	Results      []TriviaResult `json:"results"`
}

type TriviaResult struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// ToQuestion converts an API result into the in-game representation.
func (r TriviaResult) ToQuestion() TriviaQuestion {
	return TriviaQuestion{Question: r.Question, CorrectAnswer: r.CorrectAnswer}
}
