// Package input defines the boundary to the OS-level input injection backend.
package input

import (
	"fmt"
	"log/slog"

	"github.com/Lysander66/gamecontroller/pkg/message"
)

// Injector turns decoded keyboard and mouse records into input events.
type Injector interface {
	InjectKey(player string, action message.Action) error
	InjectMouse(player string, action message.MouseAction, pos message.Position, payload string) error
}

// LogInjector only logs what it would inject.
type LogInjector struct {
	Logger *slog.Logger
}

func (l *LogInjector) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *LogInjector) InjectKey(player string, action message.Action) error {
	if !action.Action.Valid() {
		return fmt.Errorf("input: invalid key action %q", action.Action)
	}

	attrs := []any{"player", player, "action", action.Action, "key", action.Key}
	if action.Payload != nil {
		attrs = append(attrs, "payload", *action.Payload)
	}
	l.logger().Info("inject key", attrs...)
	return nil
}

func (l *LogInjector) InjectMouse(player string, action message.MouseAction, pos message.Position, payload string) error {
	if !action.Valid() {
		return fmt.Errorf("input: invalid mouse action %q", action)
	}
	if !pos.Type.Valid() {
		return fmt.Errorf("input: invalid position type %q", pos.Type)
	}

	l.logger().Info("inject mouse", "player", player, "action", action,
		"position", pos.Type, "x", pos.X, "y", pos.Y, "payload", payload)
	return nil
}
