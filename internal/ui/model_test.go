package ui

import (
	"errors"
	"testing"
	"time"

	"chatlens/internal/config"
	"chatlens/internal/conv"

	tea "github.com/charmbracelet/bubbletea"
)

func testModel(t *testing.T, conversations []conv.Conversation) Model {
	t.Helper()
	m := NewModel(config.AppConfig{}, nil, nil)
	m.applyConversations(conversations)
	return m
}

func sampleConversations() []conv.Conversation {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []conv.Conversation{
		{SessionID: "aaa11111", DisplayName: "Support", CreatedAt: base.Add(2 * time.Hour)},
		{SessionID: "bbb22222", DisplayName: "Billing", CreatedAt: base.Add(time.Hour)},
		{SessionID: "ccc33333", DisplayName: "Chat ccc33333", CreatedAt: base},
	}
}

func TestApplyConversations_PreservesSelectionByID(t *testing.T) {
	m := testModel(t, sampleConversations())

	m.list.Select(1)
	m.selectedID = m.currentSelectedID()
	if m.selectedID != "bbb22222" {
		t.Fatalf("precondition: expected bbb22222 selected, got %q", m.selectedID)
	}

	// A refresh that reorders the list keeps the same session selected.
	reordered := []conv.Conversation{
		sampleConversations()[2],
		sampleConversations()[0],
		sampleConversations()[1],
	}
	changed := m.applyConversations(reordered)
	if changed {
		t.Fatalf("selection should survive a reorder")
	}
	if m.currentSelectedID() != "bbb22222" {
		t.Fatalf("expected bbb22222 still selected, got %q", m.currentSelectedID())
	}
}

func TestApplyConversations_SelectionFallsBackToFirst(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.list.Select(2)
	m.selectedID = m.currentSelectedID()

	remaining := sampleConversations()[:2]
	changed := m.applyConversations(remaining)
	if !changed {
		t.Fatalf("removing the selected session should change selection")
	}
	if m.selectedID != "aaa11111" {
		t.Fatalf("expected fallback to first conversation, got %q", m.selectedID)
	}
}

func TestApplyConversations_FilterNarrowsWithoutMutatingIndex(t *testing.T) {
	m := testModel(t, sampleConversations())

	m.filterQuery = "bill"
	m.applyConversations(m.conversations)
	if len(m.list.Items()) != 1 {
		t.Fatalf("expected 1 visible conversation, got %d", len(m.list.Items()))
	}
	if m.selectedID != "bbb22222" {
		t.Fatalf("expected filter survivor selected, got %q", m.selectedID)
	}
	if len(m.conversations) != 3 {
		t.Fatalf("underlying index must not shrink under filter, got %d", len(m.conversations))
	}

	m.filterQuery = ""
	m.applyConversations(m.conversations)
	if len(m.list.Items()) != 3 {
		t.Fatalf("expected full list after filter cleared, got %d", len(m.list.Items()))
	}
}

func TestThreadMsg_StaleGenerationDiscarded(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.selectedID = "aaa11111"
	m.threadGen = 2
	m.thread = []conv.Message{{ID: 1, Type: conv.MessageHuman, Content: "current"}}

	stale := threadMsg{
		sessionID: "aaa11111",
		gen:       1,
		msgs:      []conv.Message{{ID: 9, Type: conv.MessageAI, Content: "stale"}},
	}
	updated, _ := m.Update(stale)
	got := updated.(Model)
	if len(got.thread) != 1 || got.thread[0].Content != "current" {
		t.Fatalf("stale-generation response overwrote the thread: %#v", got.thread)
	}
}

func TestThreadMsg_MismatchedSessionDiscarded(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.selectedID = "aaa11111"
	m.threadGen = 1
	m.thread = []conv.Message{{ID: 1, Type: conv.MessageHuman, Content: "current"}}

	other := threadMsg{
		sessionID: "bbb22222",
		gen:       1,
		msgs:      []conv.Message{{ID: 9, Content: "other session"}},
	}
	updated, _ := m.Update(other)
	got := updated.(Model)
	if got.thread[0].Content != "current" {
		t.Fatalf("response for another session overwrote the thread: %#v", got.thread)
	}
}

func TestThreadMsg_UnchangedThreadSkipsRerender(t *testing.T) {
	msgs := []conv.Message{
		{ID: 1, Type: conv.MessageHuman, Content: "q", CreatedAt: time.Unix(100, 0)},
		{ID: 2, Type: conv.MessageAI, Content: "a", CreatedAt: time.Unix(200, 0)},
	}
	m := testModel(t, sampleConversations())
	m.selectedID = "aaa11111"
	m.threadGen = 1
	m.thread = msgs

	same := threadMsg{sessionID: "aaa11111", gen: 1, msgs: append([]conv.Message(nil), msgs...)}
	updated, _ := m.Update(same)
	got := updated.(Model)
	if got.renderNonce != m.renderNonce {
		t.Fatalf("unchanged thread should not trigger a re-render")
	}

	grown := threadMsg{
		sessionID: "aaa11111",
		gen:       1,
		msgs:      append(append([]conv.Message(nil), msgs...), conv.Message{ID: 3, Type: conv.MessageHuman, Content: "more"}),
	}
	updated, cmd := got.Update(grown)
	got = updated.(Model)
	if got.renderNonce == m.renderNonce {
		t.Fatalf("changed thread should trigger a re-render")
	}
	if cmd == nil {
		t.Fatalf("expected render command for changed thread")
	}
	if len(got.thread) != 3 {
		t.Fatalf("expected thread replaced, got %d messages", len(got.thread))
	}
}

func TestThreadTick_OldGenerationChainDies(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.selectedID = "aaa11111"
	m.threadGen = 3

	_, cmd := m.Update(threadTickMsg{gen: 2})
	if cmd != nil {
		t.Fatalf("old tick chain must not reschedule or fetch")
	}
}

func TestThreadTick_NoSelectionStopsChain(t *testing.T) {
	m := testModel(t, nil)
	m.threadGen = 1

	_, cmd := m.Update(threadTickMsg{gen: 1})
	if cmd != nil {
		t.Fatalf("tick with no selection must not reschedule")
	}
}

func TestRename_StartSeedsDraftWithCurrentName(t *testing.T) {
	m := testModel(t, sampleConversations())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	got := updated.(Model)
	if !got.renaming {
		t.Fatalf("expected rename mode after r")
	}
	if got.rename.Value() != "Support" {
		t.Fatalf("draft not seeded with current name: %q", got.rename.Value())
	}
}

func TestRename_EmptySubmitIsCancel(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.renaming = true
	m.rename.SetValue("   ")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got := updated.(Model)
	if got.renaming {
		t.Fatalf("expected rename mode ended")
	}
	if cmd != nil {
		t.Fatalf("whitespace-only draft must not persist anything")
	}
	if c, _ := got.selectedConversation(); c.DisplayName != "Support" {
		t.Fatalf("name changed on cancelled rename: %q", c.DisplayName)
	}
}

func TestRename_EscCancels(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.renaming = true
	m.rename.SetValue("Half typed")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	got := updated.(Model)
	if got.renaming || cmd != nil {
		t.Fatalf("esc should cancel without side effects")
	}
}

func TestRename_SubmitDoesNotApplyOptimistically(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.renaming = true
	m.rename.SetValue("Escalations")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got := updated.(Model)
	if cmd == nil {
		t.Fatalf("expected persistence command")
	}
	// The shown name must not change until the store confirms.
	if c, _ := got.selectedConversation(); c.DisplayName != "Support" {
		t.Fatalf("rename applied before confirmation: %q", c.DisplayName)
	}
}

func TestRenameMsg_SuccessUpdatesIndexAndSelection(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.selectedID = "aaa11111"

	updated, _ := m.Update(renameMsg{sessionID: "aaa11111", name: "Escalations"})
	got := updated.(Model)

	c, ok := got.selectedConversation()
	if !ok || c.DisplayName != "Escalations" {
		t.Fatalf("selected conversation name not updated: %#v", c)
	}
	item, _ := got.list.SelectedItem().(convItem)
	if item.c.DisplayName != "Escalations" {
		t.Fatalf("list item name not updated: %q", item.c.DisplayName)
	}
}

func TestRenameMsg_FailureLeavesNameAndSurfacesError(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.selectedID = "aaa11111"

	updated, _ := m.Update(renameMsg{sessionID: "aaa11111", name: "Escalations", err: errors.New("backend rejected update")})
	got := updated.(Model)

	if c, _ := got.selectedConversation(); c.DisplayName != "Support" {
		t.Fatalf("failed rename mutated local name: %q", c.DisplayName)
	}
	if got.err == nil {
		t.Fatalf("expected error surfaced")
	}
}

func TestRename_IgnoredWhileAlreadyEditing(t *testing.T) {
	m := testModel(t, sampleConversations())
	m.renaming = true
	m.rename.Focus()
	m.rename.SetValue("draft")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	got := updated.(Model)
	if got.rename.Value() != "draftr" {
		t.Fatalf("r during edit should type into the draft, got %q", got.rename.Value())
	}
}
