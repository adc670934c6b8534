package commandstructure

import (
	"errors"
	"testing"
)

func TestCommandInvoker_EmptyCommandList(t *testing.T) {
	invoker := NewCommandInvoker("test", nil)
	testData := []byte("test data")
	result, err := invoker.Execute(testData)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(result) != string(testData) {
		t.Error("Expected result to match input for empty command list")
	}
}

func TestCommandInvoker_RunsInOrder(t *testing.T) {
	invoker := NewCommandInvoker("test", []Command{
		newAppendCommand("first", "-a"),
		newMockCommand("passthrough"),
		newAppendCommand("second", "-b"),
	})
	if invoker.Len() != 3 {
		t.Fatalf("Expected 3 commands, got %d", invoker.Len())
	}

	result, err := invoker.Execute([]byte("img"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(result) != "img-a-b" {
		t.Errorf("Expected 'img-a-b', got %q", string(result))
	}
}

func TestCommandInvoker_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	executed := false
	invoker := NewCommandInvoker("test", []Command{
		newAppendCommand("first", "-a"),
		newMockCommandWithError("failing", boom),
		&mockCommand{name: "never", executeFunc: func(d []byte) ([]byte, error) {
			executed = true
			return d, nil
		}},
	})

	result, err := invoker.Execute([]byte("img"))
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped boom error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected no partial output, got %q", string(result))
	}
	if executed {
		t.Error("Expected commands after the failing one not to run")
	}
}

func TestNewCommandInvokerFromConfigs(t *testing.T) {
	registry := NewCommandRegistry()
	err := registry.Register("Suffix", func(params map[string]any) (Command, error) {
		if err := ValidateRequiredParams(params, []string{"suffix"}); err != nil {
			return nil, err
		}
		return newAppendCommand("Suffix", GetStringParam(params, "suffix", "")), nil
	})
	if err != nil {
		t.Fatalf("Failed to register command: %v", err)
	}

	invoker, err := NewCommandInvokerFromConfigs("test", registry, []CommandConfig{
		{Name: "Suffix", Params: map[string]any{"suffix": "-x"}},
		{Name: "Suffix", Params: map[string]any{"suffix": "-y"}},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	result, err := invoker.Execute([]byte("img"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(result) != "img-x-y" {
		t.Errorf("Expected 'img-x-y', got %q", string(result))
	}

	if _, err := NewCommandInvokerFromConfigs("test", registry, []CommandConfig{{Name: "Suffix"}}); err == nil {
		t.Error("Expected error for missing required parameter")
	}
	if _, err := NewCommandInvokerFromConfigs("test", registry, []CommandConfig{{Name: "Unknown"}}); err == nil {
		t.Error("Expected error for unknown command")
	}
}

func TestExecuteCommands_UsesDefaultRegistry(t *testing.T) {
	testRegistry := NewCommandRegistry()
	if err := testRegistry.Register("Mock", func(map[string]any) (Command, error) {
		return newAppendCommand("Mock", "!"), nil
	}); err != nil {
		t.Fatalf("Failed to register command: %v", err)
	}

	originalRegistry := DefaultRegistry
	DefaultRegistry = testRegistry
	defer func() { DefaultRegistry = originalRegistry }()

	result, err := ExecuteCommands([]byte("img"), []CommandConfig{{Name: "Mock"}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(result) != "img!" {
		t.Errorf("Expected 'img!', got %q", string(result))
	}
}
