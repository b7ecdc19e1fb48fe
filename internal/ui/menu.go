package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/yvy-orbital/yvy-field-service/internal/delivery"
	"github.com/yvy-orbital/yvy-field-service/internal/storage"
)

// Notifier reports finished CLI jobs.
type Notifier interface {
	SendSuccess(ctx context.Context, message string) error
	SendError(ctx context.Context, message string) error
}

// App holds what the menu handlers need. Readings and Notifier may be nil.
type App struct {
	Analyzer *delivery.Analyzer
	Zoner    *delivery.Zoner
	Readings *storage.ReadingRepository
	Notifier Notifier
	RootPath string
	K        int
	Timeout  time.Duration
}

type menuOption struct {
	title   string
	handler func()
}

// ShowMenu displays the main menu and handles user input until Exit.
func (a *App) ShowMenu() {
	exit := false
	menuOptions := []menuOption{
		{"Analyze farm health indicators", a.AnalyzeFarm},
		{"Split a farm into productivity zones", a.ZoneFarm},
		{"Create a farm PDF report", a.CreateReport},
		{"Backfill monthly readings for a farm", a.Backfill},
		{"View stored readings of a farm", a.ListReadings},
		{"View the list of available farm boundaries", a.ListFarms},
		{"Exit the application", func() { fmt.Println("Exiting..."); exit = true }},
	}

	for !exit {
		fmt.Println("\033[34m===================\033[0m")
		for i, opt := range menuOptions {
			fmt.Printf("\033[34m%d. %s\033[0m\n", i+1, opt.title)
		}
		choice, err := ReadInt("Please enter your choice: ", 1, len(menuOptions), 0)
		if err != nil || choice == 0 {
			fmt.Printf("\n\033[31mInvalid input. Please enter a number between 1 and %d.\033[0m\n", len(menuOptions))
			continue
		}
		menuOptions[choice-1].handler()
	}
}

func (a *App) context() (context.Context, context.CancelFunc) {
	if a.Timeout > 0 {
		return context.WithTimeout(context.Background(), a.Timeout)
	}
	return context.WithCancel(context.Background())
}

func (a *App) notifySuccess(ctx context.Context, message string) {
	if a.Notifier == nil {
		return
	}
	if err := a.Notifier.SendSuccess(ctx, message); err != nil {
		PrintError(fmt.Sprintf("Failed to send notification: %s", err.Error()))
	}
}

func (a *App) notifyError(ctx context.Context, message string) {
	if a.Notifier == nil {
		return
	}
	if err := a.Notifier.SendError(ctx, message); err != nil {
		PrintError(fmt.Sprintf("Failed to send notification: %s", err.Error()))
	}
}
