package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

type Executor func(line string)
type Completer func(d prompt.Document) []prompt.Suggest

// MainLoop runs interactive prompt when stdin is terminal,
// otherwise executes stdin line by line until EOF or stop.
func MainLoop(tag string, exec Executor, complete Completer, stop <-chan struct{}) error {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		if complete == nil {
			complete = NoComplete
		}
		prompt.New(prompt.Executor(exec), prompt.Completer(complete),
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return nil
	}
	return ReadLines(os.Stdin, exec, stop)
}

// ReadLines calls exec for every non-empty trimmed line of r.
func ReadLines(r io.Reader, exec Executor, stop <-chan struct{}) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-stop:
			return nil
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		exec(line)
	}
	return scanner.Err()
}

func NoComplete(prompt.Document) []prompt.Suggest { return nil }

// PrefixCompleter suggests from static list by first word.
func PrefixCompleter(suggests []prompt.Suggest) Completer {
	return func(d prompt.Document) []prompt.Suggest {
		if strings.Contains(d.TextBeforeCursor(), " ") {
			return nil
		}
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
}
