package cli

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/chzyer/readline"

	"github.com/tjfontaine/narratium-client/internal/game"
)

const (
	customOption = "Write your own action..."
	quitOption   = "End the game"
)

// Choice is the player's answer to a set of options.
type Choice struct {
	Text string
	Quit bool
}

// Input collects player decisions.
type Input interface {
	Character() (game.Character, error)
	Choose(options []string) (Choice, error)
	Confirm(question string) bool
}

// TerminalInput asks through interactive terminal prompts.
type TerminalInput struct {
	HistoryFile string
}

// NewTerminalInput creates a TerminalInput keeping readline history in the
// user's temp directory.
func NewTerminalInput() *TerminalInput {
	return &TerminalInput{HistoryFile: filepath.Join(os.TempDir(), "narratium.history")}
}

func (t *TerminalInput) Character() (game.Character, error) {
	var answers struct {
		Name        string
		Description string
	}
	questions := []*survey.Question{
		{
			Name:     "name",
			Prompt:   &survey.Input{Message: "Character name:"},
			Validate: survey.Required,
		},
		{
			Name:   "description",
			Prompt: &survey.Input{Message: "Character description:"},
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return game.Character{}, interrupted(err)
	}
	return game.Character{Name: answers.Name, Description: answers.Description}, nil
}

func (t *TerminalInput) Choose(options []string) (Choice, error) {
	if len(options) == 0 {
		return t.freeText()
	}

	items := append(append([]string{}, options...), customOption, quitOption)
	var picked string
	if err := survey.AskOne(&survey.Select{Message: "What do you do?", Options: items}, &picked); err != nil {
		return Choice{}, interrupted(err)
	}

	switch picked {
	case quitOption:
		return Choice{Quit: true}, nil
	case customOption:
		return t.freeText()
	default:
		return Choice{Text: picked}, nil
	}
}

// freeText reads one line. "/quit", Ctrl-C and Ctrl-D end the game.
func (t *TerminalInput) freeText() (Choice, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptColor.Sprint("> "),
		InterruptPrompt:   "^C",
		HistoryFile:       t.HistoryFile,
		HistorySearchFold: true,
	})
	if err != nil {
		return Choice{}, err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return Choice{Quit: true}, nil
		}
		if err != nil {
			return Choice{}, err
		}
		line = strings.TrimSpace(line)
		if line == "/quit" {
			return Choice{Quit: true}, nil
		}
		if line != "" {
			return Choice{Text: line}, nil
		}
	}
}

// Confirm asks a yes/no question.
func (t *TerminalInput) Confirm(question string) bool {
	confirm := false
	survey.AskOne(&survey.Confirm{Message: question}, &confirm)
	return confirm
}

// ErrQuit is returned when the player interrupts a prompt.
var ErrQuit = errors.New("player quit")

func interrupted(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrQuit
	}
	return err
}
