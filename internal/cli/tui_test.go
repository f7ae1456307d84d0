package cli

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/pkgintel/pkg/model"
)

func pickerResults(n int) []model.SearchResult {
	out := make([]model.SearchResult, n)
	for i := range out {
		out[i] = model.SearchResult{Name: fmt.Sprintf("pkg-%d", i), Version: "1.0.0"}
	}
	return out
}

func press(m tea.Model, keys ...string) tea.Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ = m.Update(msg)
	}
	return m
}

func TestPackagePickerNavigation(t *testing.T) {
	m := press(NewPackagePicker(pickerResults(3)), "down", "j", "down", "up", "enter").(PackagePicker)

	if m.Cursor != 1 {
		t.Errorf("Cursor = %d, want 1", m.Cursor)
	}
	if m.Selected != "pkg-1" {
		t.Errorf("Selected = %q, want pkg-1", m.Selected)
	}
}

func TestPackagePickerQuit(t *testing.T) {
	m := NewPackagePicker(pickerResults(2))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if sel := next.(PackagePicker).Selected; sel != "" {
		t.Errorf("Selected after quit = %q, want empty", sel)
	}
}

func TestPackagePickerScrolls(t *testing.T) {
	m := NewPackagePicker(pickerResults(10))
	m.Height = 3

	keys := make([]string, 5)
	for i := range keys {
		keys[i] = "down"
	}
	got := press(m, keys...).(PackagePicker)
	if got.Cursor != 5 || got.Offset != 3 {
		t.Errorf("Cursor, Offset = %d, %d, want 5, 3", got.Cursor, got.Offset)
	}

	view := got.View()
	if !strings.Contains(view, "pkg-5") || strings.Contains(view, "pkg-0") {
		t.Errorf("View() should show the scrolled window:\n%s", view)
	}
	if !strings.Contains(view, "[6/10]") {
		t.Errorf("View() missing position indicator:\n%s", view)
	}
}

func TestPackagePickerWindowSize(t *testing.T) {
	m := NewPackagePicker(pickerResults(1))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 4})
	if h := next.(PackagePicker).Height; h != 5 {
		t.Errorf("Height = %d, want minimum 5", h)
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{now.Add(-30 * time.Minute), "30m ago"},
		{now.Add(-5 * time.Hour), "5h ago"},
		{now.Add(-3 * 24 * time.Hour), "3d ago"},
		{time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), "Jan 2, 2023"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(now, tt.t); got != tt.want {
			t.Errorf("formatRelativeTime(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}
