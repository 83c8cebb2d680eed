// Package interactive provides terminal prompts for the interactive mode
package interactive

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

const exitChoice = "Exit"

// MenuOption represents a menu item with its associated action
type MenuOption struct {
	Name        string
	Description string
	Action      func() error
}

var (
	// ErrExit is returned when the user chooses to exit
	ErrExit = errors.New("exit")
	// ErrInvalidSelection is returned when an invalid menu option is selected
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrNothingSelected is returned by SelectMany when no choice was ticked
	ErrNothingSelected = errors.New("nothing selected")
)

// choices builds the prompt labels for options followed by Exit.
func choices(options []MenuOption) ([]string, map[string]MenuOption) {
	labels := make([]string, 0, len(options)+1)
	byLabel := make(map[string]MenuOption, len(options))

	for _, opt := range options {
		label := opt.Name
		if opt.Description != "" {
			label = fmt.Sprintf("%s - %s", opt.Name, opt.Description)
		}

		labels = append(labels, label)
		byLabel[label] = opt
	}

	return append(labels, exitChoice), byLabel
}

// ShowMenu displays a menu and runs the selected action.
func ShowMenu(message string, options []MenuOption) error {
	labels, byLabel := choices(options)

	var selected string

	prompt := &survey.Select{
		Message: message,
		Options: labels,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return ErrExit
	}

	if selected == exitChoice {
		return ErrExit
	}

	if option, ok := byLabel[selected]; ok {
		return option.Action()
	}

	return ErrInvalidSelection
}

// ShowMainMenu displays the main menu and handles user selection
func ShowMainMenu(options []MenuOption) error {
	return ShowMenu("What would you like to do?", options)
}

// SelectOne asks for a single value from options.
func SelectOne(message string, options []string) (string, error) {
	var selected string

	prompt := &survey.Select{
		Message: message,
		Options: options,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", ErrExit
	}

	return selected, nil
}

// SelectMany asks for one or more values from options, all ticked by default.
func SelectMany(message string, options []string) ([]string, error) {
	var selected []string

	prompt := &survey.MultiSelect{
		Message: message,
		Options: options,
		Default: options,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return nil, ErrExit
	}

	if len(selected) == 0 {
		return nil, ErrNothingSelected
	}

	return selected, nil
}

// PauseForEnter waits for the user to press Enter
func PauseForEnter() {
	fmt.Println("\nPress Enter to continue...")
	_, _ = fmt.Scanln()
}

// Confirm asks for user confirmation
func Confirm(message string) bool {
	confirmed := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	_ = survey.AskOne(prompt, &confirmed)
	return confirmed
}
