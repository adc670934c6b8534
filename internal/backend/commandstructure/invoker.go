package commandstructure

import (
	"fmt"
	"log/slog"
	"time"
)

// CommandInvoker runs a fixed sequence of commands, feeding each command
// the output of the previous one.
type CommandInvoker struct {
	name     string
	commands []Command
}

// NewCommandInvoker creates an invoker over already built commands.
func NewCommandInvoker(name string, commands []Command) *CommandInvoker {
	return &CommandInvoker{
		name:     name,
		commands: commands,
	}
}

// NewCommandInvokerFromConfigs builds every configured command up front so
// that configuration errors surface at startup rather than on first use.
func NewCommandInvokerFromConfigs(name string, registry *CommandRegistry, configs []CommandConfig) (*CommandInvoker, error) {
	commands := make([]Command, 0, len(configs))
	for i, config := range configs {
		command, err := registry.Create(config.Name, config.Params)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: failed to create command at index %d (%s): %w", name, i, config.Name, err)
		}
		commands = append(commands, command)
	}
	return NewCommandInvoker(name, commands), nil
}

// Len returns the number of commands in the pipeline.
func (i *CommandInvoker) Len() int {
	return len(i.commands)
}

// Execute applies all commands in order. If any command fails the whole
// pipeline fails and no partial output is returned.
func (i *CommandInvoker) Execute(imageData []byte) ([]byte, error) {
	start := time.Now()

	if len(i.commands) == 0 {
		slog.Debug("no commands in pipeline, returning input", "pipeline", i.name)
		return imageData, nil
	}

	slog.Debug("starting image pipeline",
		"pipeline", i.name,
		"command_count", len(i.commands),
		"input_size_bytes", len(imageData))

	currentData := imageData
	for idx, command := range i.commands {
		commandStart := time.Now()

		processedData, err := command.Execute(currentData)
		if err != nil {
			slog.Error("pipeline command failed",
				"pipeline", i.name,
				"index", idx,
				"command_name", command.Name(),
				"error", err,
				"input_size_bytes", len(currentData))
			return nil, fmt.Errorf("command %s (index %d) failed: %w", command.Name(), idx, err)
		}

		slog.Debug("pipeline command completed",
			"pipeline", i.name,
			"index", idx,
			"command_name", command.Name(),
			"duration_ms", time.Since(commandStart).Milliseconds(),
			"input_size_bytes", len(currentData),
			"output_size_bytes", len(processedData))

		currentData = processedData
	}

	slog.Info("image pipeline completed",
		"pipeline", i.name,
		"total_duration_ms", time.Since(start).Milliseconds(),
		"command_count", len(i.commands),
		"final_size_bytes", len(currentData))

	return currentData, nil
}

// ExecuteCommands builds the configured commands from DefaultRegistry and
// runs them once.
func ExecuteCommands(imageData []byte, configs []CommandConfig) ([]byte, error) {
	invoker, err := NewCommandInvokerFromConfigs("adhoc", DefaultRegistry, configs)
	if err != nil {
		return nil, err
	}
	return invoker.Execute(imageData)
}
