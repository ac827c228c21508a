package gateway

import (
	"context"
	"errors"
	"log"
)

// Notifier delivers a run summary to a chat channel (Telegram, Discord, etc.)
type Notifier interface {
	Name() string
	Notify(ctx context.Context, text string) error
}

// Broadcast sends text through every notifier and joins their errors.
func Broadcast(ctx context.Context, notifiers []Notifier, text string) error {
	var errs []error
	for _, n := range notifiers {
		if err := n.Notify(ctx, text); err != nil {
			log.Printf("Failed to notify via %s: %v", n.Name(), err)
			errs = append(errs, err)
			continue
		}
		log.Printf("Run summary sent via %s", n.Name())
	}
	return errors.Join(errs...)
}

func clip(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max-3]) + "..."
}
