package domain

// ClarificationTurn is one question/answer exchange of the interview.
type ClarificationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ClarificationState tracks the progress of the clarification interview.
// It is owned by whoever drives the interview loop and is never shared.
type ClarificationState struct {
	Topic    string              `json:"topic"`
	Turns    []ClarificationTurn `json:"turns"`
	Summary  string              `json:"summary,omitempty"`
	Complete bool                `json:"complete"`
}

// NewClarificationState starts an interview about topic.
func NewClarificationState(topic string) *ClarificationState {
	return &ClarificationState{
		Topic: topic,
		Turns: []ClarificationTurn{},
	}
}

// AddTurn records an answered question.
func (s *ClarificationState) AddTurn(question, answer string) {
	s.Turns = append(s.Turns, ClarificationTurn{Question: question, Answer: answer})
}

// Questions returns the questions asked so far, in order.
func (s *ClarificationState) Questions() []string {
	out := make([]string, 0, len(s.Turns))
	for _, turn := range s.Turns {
		out = append(out, turn.Question)
	}
	return out
}

// Answers returns the answers given so far, in order.
func (s *ClarificationState) Answers() []string {
	out := make([]string, 0, len(s.Turns))
	for _, turn := range s.Turns {
		out = append(out, turn.Answer)
	}
	return out
}
