/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// UI handles the interactive terminal output
type UI struct {
	noColor        bool
	RenderMarkdown bool
}

// NewUI creates a new UI instance
func NewUI(noColor bool, renderMarkdown bool) *UI {
	return &UI{
		noColor:        noColor,
		RenderMarkdown: renderMarkdown,
	}
}

// colorize applies color if colors are enabled
func (ui *UI) colorize(color, text string) string {
	if ui.noColor {
		return text
	}
	return color + text + ColorReset
}

// PrintWelcome prints the welcome message
func (ui *UI) PrintWelcome() {
	banner := `
 ___  __ _| (_)/ _|_   _      mcp-sqlify Text-to-SQL Agent
/ __|/ _' | | | |_| | | |     Ask questions in plain language.
\__ \ (_| | | |  _| |_| |     Type 'quit' or 'exit' to leave,
|___/\__, |_|_|_|  \__, |     'help' for commands.
        |_|        |___/
`
	fmt.Println(ui.colorize(ColorCyan, banner))
}

// GetPrompt returns the prompt string for readline
func (ui *UI) GetPrompt() string {
	return ui.colorize(ColorGreen+ColorBold, "You: ")
}

// PrintSQL prints the generated query with its strategy and attempt count
func (ui *UI) PrintSQL(sqlText, strategy string, attempts int) {
	label := fmt.Sprintf("SQL (%s, attempt %d): ", strategy, attempts)
	fmt.Println(ui.colorize(ColorBlue, label) + sqlText)
}

// PrintResult renders a result table
func (ui *UI) PrintResult(markdownTable string) {
	if ui.RenderMarkdown {
		// Configure glamour renderer based on color settings
		var style string
		if ui.noColor {
			style = "notty"
		} else {
			style = "dark"
		}

		// Cap the render width so tables stay readable on wide terminals
		width := ui.getTerminalWidth()
		if width > 120 {
			width = 120
		}

		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithStylePath(style),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			rendered, err := r.Render(markdownTable)
			if err == nil {
				fmt.Print(rendered)
				return
			}
			// If rendering fails, fall back to plain text
		}
	}

	fmt.Println(markdownTable)
}

// PrintSystemMessage prints a system message
func (ui *UI) PrintSystemMessage(text string) {
	fmt.Println(ui.colorize(ColorYellow, "System: ") + text)
}

// PrintError prints an error message
func (ui *UI) PrintError(text string) {
	fmt.Println(ui.colorize(ColorRed, "Error: ") + text)
}

// PrintSeparator prints a separator line
func (ui *UI) PrintSeparator() {
	fmt.Println(ui.colorize(ColorGray, strings.Repeat("─", 80)))
}

// getTerminalWidth returns the maximum width for markdown rendering
func (ui *UI) getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		// Leave a small margin to prevent awkward wrapping at terminal edge
		if width > 2 {
			return width - 2
		}
		return width
	}
	// Default to 80 columns if we can't determine terminal width
	return 80
}

// ClearScreen clears the terminal screen
func (ui *UI) ClearScreen() {
	fmt.Print("\033[H\033[2J")
}

// PrintHelp prints the help message
func (ui *UI) PrintHelp() {
	help := `
Available commands:
  help      - Show this help message
  quit      - Exit the session
  exit      - Exit the session
  clear     - Clear the screen
  schema    - Show the database schema
  sql       - Toggle display of generated SQL

History navigation:
  Up/Down   - Navigate through question history
  Ctrl+R    - Reverse search history

Everything else is treated as a question about the database.
`
	fmt.Println(ui.colorize(ColorCyan, help))
}
