package bot

import "context"

// MockResponder permite tests sin llamar al motor real.
type MockResponder struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockResponder) Reply(_ context.Context, message string) (string, error) {
	m.Prompts = append(m.Prompts, message)
	return m.Response, m.Err
}
