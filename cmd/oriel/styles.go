package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for the tail console.
var (
	tailTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	tailAddrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // gray

	// Event line styles.
	timeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // dim gray
	reservedKindStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")) // magenta, oriel:* events
	appKindStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue
	windowStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))            // yellow
	dataStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))            // light gray

	// Status bar styles.
	statusBarStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	disconnectStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")) // red
)
