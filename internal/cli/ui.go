package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/klubi/golem/pkg/api"
)

var (
	promptColor    = color.New(color.FgGreen, color.Bold)
	assistantColor = color.New(color.FgWhite)
	toolColor      = color.New(color.FgCyan)
	noticeColor    = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
)

// termUI renders the conversation on the terminal and satisfies the
// controller's UI contract.
type termUI struct {
	reader *bufio.Reader
}

func newTermUI() *termUI {
	return &termUI{reader: bufio.NewReader(os.Stdin)}
}

// ReadLine shows the prompt and reads one line of user input. ok is
// false on EOF.
func (u *termUI) ReadLine() (line string, ok bool) {
	promptColor.Print("you> ")
	text, err := u.reader.ReadString('\n')
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(text), true
}

func (u *termUI) TextDelta(s string) {
	assistantColor.Print(s)
}

func (u *termUI) TextDone() {
	fmt.Println()
}

func (u *termUI) ToolCall(name string, args map[string]any) {
	preview := api.CanonicalArgs(args)
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	toolColor.Printf("  [tool] %s %s\n", name, preview)
}

func (u *termUI) Notice(s string) {
	noticeColor.Printf("%s\n", s)
}

func (u *termUI) ConfirmContinue(steps int) bool {
	noticeColor.Printf("The agent has taken %d steps this turn. Keep going? [y/N] ", steps)
	text, err := u.reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(text))
	return answer == "y" || answer == "yes"
}
