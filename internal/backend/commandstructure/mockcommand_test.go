package commandstructure

// mockCommand is a Command whose behaviour is supplied by the test.
type mockCommand struct {
	name        string
	executeFunc func([]byte) ([]byte, error)
}

func (m *mockCommand) Name() string {
	return m.name
}

func (m *mockCommand) Execute(imageData []byte) ([]byte, error) {
	if m.executeFunc != nil {
		return m.executeFunc(imageData)
	}
	return imageData, nil
}

// newMockCommand returns a pass-through command.
func newMockCommand(name string) *mockCommand {
	return &mockCommand{name: name}
}

// newAppendCommand returns a command that appends suffix to its input.
func newAppendCommand(name string, suffix string) *mockCommand {
	return &mockCommand{
		name: name,
		executeFunc: func(data []byte) ([]byte, error) {
			out := make([]byte, 0, len(data)+len(suffix))
			out = append(out, data...)
			return append(out, suffix...), nil
		},
	}
}

// newMockCommandWithError returns a command that always fails with err.
func newMockCommandWithError(name string, err error) *mockCommand {
	return &mockCommand{
		name: name,
		executeFunc: func(data []byte) ([]byte, error) {
			return nil, err
		},
	}
}
