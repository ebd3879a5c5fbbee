package orchestrator

import (
	"context"
)

// Notifier shows toasts and notification cards.
type Notifier interface {
	Success(message string)
	Error(message string)
	Notify(title, description string)
}

// Navigator moves between screens.
type Navigator interface {
	Back(ctx context.Context) error
	Navigate(ctx context.Context, path string) error
}

// Confirmer asks the user a blocking yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
}

type nopNotifier struct{}

func (nopNotifier) Success(string)        {}
func (nopNotifier) Error(string)          {}
func (nopNotifier) Notify(string, string) {}

type nopNavigator struct{}

func (nopNavigator) Back(context.Context) error             { return nil }
func (nopNavigator) Navigate(context.Context, string) error { return nil }

type alwaysConfirm struct{}

func (alwaysConfirm) Confirm(context.Context, string, string) (bool, error) { return true, nil }
