package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/story-coach/internal/handlers"
	"github.com/jwebster45206/story-coach/internal/services/events"
	"github.com/jwebster45206/story-coach/internal/workflow"
	"github.com/jwebster45206/story-coach/pkg/brief"
	"github.com/jwebster45206/story-coach/pkg/chat"
	"github.com/jwebster45206/story-coach/pkg/prompts"
	"github.com/jwebster45206/story-coach/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

const (
	AgentName       = "InspiraBot"
	PlaceHolderText = "Share your ideas here..."
	requestTimeout  = 2 * time.Minute
)

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

var fieldPlaceholders = map[brief.Field]string{
	brief.FieldLevel:   "e.g. Elementary school",
	brief.FieldConcept: "e.g. Photosynthesis",
	brief.FieldGenre:   "e.g. Fantasy",
	brief.FieldSetting: "e.g. Imaginary world",
	brief.FieldGoals:   "Optional",
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api       *apiClient
	streaming *apiClient

	snapshot     *workflow.Snapshot
	stage        *workflow.StageView
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	notice       string

	// Reply streaming state
	loading     bool
	stream      <-chan tea.Msg
	pendingText string

	// Brief form state
	showBriefForm bool
	briefInputs   []textinput.Model
	briefFocus    int
	briefProblems []string
	submitting    bool

	// Outline overlay state
	showOutline bool
	outline     string

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type sessionMsg struct {
	snapshot *workflow.Snapshot
	err      error
}

type briefSubmittedMsg struct {
	snapshot *workflow.Snapshot
	err      error
}

type stageMsg struct {
	view *workflow.StageView
	err  error
}

type completionMsg struct {
	result *workflow.CompletionResult
	err    error
}

type outlineMsg struct {
	markdown string
	err      error
}

type copiedMsg struct {
	err error
}

type chatChunkMsg struct {
	content string
}

type chatDoneMsg struct {
	response chat.ChatResponse
}

type chatErrMsg struct {
	err error
}

type streamClosedMsg struct{}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	coachStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // green

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	fieldLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(api, streaming *apiClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = chat.MaxMessageLength
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		api:          api,
		streaming:    streaming,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
		briefInputs:  newBriefInputs(brief.Brief{}),
	}
}

func newBriefInputs(values brief.Brief) []textinput.Model {
	inputs := make([]textinput.Model, len(brief.Fields))
	for i, f := range brief.Fields {
		ti := textinput.New()
		ti.Placeholder = fieldPlaceholders[f]
		ti.Prompt = promptStyle.Render("› ")
		ti.CharLimit = 200
		ti.Width = 40
		ti.SetValue(values.Value(f))
		inputs[i] = ti
	}
	inputs[0].Focus()
	return inputs
}

// briefFromInputs collects the form values.
func briefFromInputs(inputs []textinput.Model) brief.Brief {
	var b brief.Brief
	for i, f := range brief.Fields {
		v := inputs[i].Value()
		switch f {
		case brief.FieldLevel:
			b.Level = v
		case brief.FieldConcept:
			b.Concept = v
		case brief.FieldGenre:
			b.Genre = v
		case brief.FieldSetting:
			b.Setting = v
		case brief.FieldGoals:
			b.Goals = v
		}
	}
	return b
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.loadSession(), textarea.Blink)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Async results are applied whichever screen is showing.
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		if !m.ready {
			m.ready = true
		}
		m.refreshContent()
		return m, nil

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
			m.refreshContent()
			return m, nil
		}
		m.snapshot = msg.snapshot
		if !m.snapshot.Workflow.BriefValid && !m.showBriefForm {
			m.openBriefForm(m.snapshot.Brief)
		}
		m.refreshContent()
		if m.snapshot.Workflow.BriefValid && m.stage == nil {
			return m, m.activateStage()
		}
		return m, nil

	case briefSubmittedMsg:
		m.submitting = false
		var berr *briefError
		switch {
		case errors.As(msg.err, &berr):
			m.briefProblems = berr.resp.Problems
			return m, nil
		case msg.err != nil:
			m.briefProblems = []string{msg.err.Error()}
			return m, nil
		}
		m.snapshot = msg.snapshot
		m.showBriefForm = false
		m.briefProblems = nil
		m.notice = successStyle.Render(prompts.BriefSavedNotice)
		m.textarea.Focus()
		m.refreshContent()
		return m, tea.Batch(m.activateStage(), textarea.Blink)

	case stageMsg:
		if errors.Is(msg.err, errLocked) {
			m.stage = nil
			m.openBriefForm(m.currentBrief())
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.stage = msg.view
		}
		m.refreshContent()
		return m, m.loadSession()

	case completionMsg:
		if msg.err != nil {
			m.notice = errorStyle.Render(msg.err.Error())
			m.refreshContent()
			return m, nil
		}
		m.notice = renderFeedback(msg.result.Feedback)
		m.refreshContent()
		if msg.result.Active == state.StageDone {
			return m, tea.Batch(m.loadSession(), m.fetchOutline())
		}
		return m, tea.Batch(m.loadSession(), m.activateStage())

	case outlineMsg:
		if msg.err != nil {
			m.notice = errorStyle.Render(msg.err.Error())
		} else {
			m.outline = msg.markdown
			m.showOutline = true
		}
		m.refreshContent()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = errorStyle.Render("Could not copy outline: " + msg.err.Error())
		} else {
			m.notice = successStyle.Render("Outline copied to clipboard.")
		}
		m.refreshContent()
		return m, nil

	case chatChunkMsg:
		m.pendingText += msg.content
		m.refreshContent()
		return m, waitForStream(m.stream)

	case chatDoneMsg:
		m.loading = false
		m.pendingText = ""
		if m.snapshot != nil {
			m.snapshot.Transcript = msg.response.ChatHistory
		}
		m.refreshContent()
		return m, tea.Batch(waitForStream(m.stream), m.loadSession())

	case chatErrMsg:
		m.loading = false
		m.pendingText = ""
		if errors.Is(msg.err, errLocked) {
			m.openBriefForm(m.currentBrief())
			return m, m.loadSession()
		}
		m.err = msg.err
		m.refreshContent()
		return m, m.loadSession()

	case streamClosedMsg:
		m.stream = nil
		if m.loading {
			m.loading = false
			m.pendingText = ""
			m.refreshContent()
			return m, m.loadSession()
		}
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.refreshContent()
			return m, progressTick()
		}
		return m, nil
	}

	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showBriefForm {
		return m.updateBriefForm(msg)
	}
	if m.showOutline {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.Type {
			case tea.KeyCtrlC:
				m.showQuitModal = true
			case tea.KeyEsc, tea.KeyEnter:
				m.showOutline = false
				m.refreshContent()
			}
			return m, nil
		}
		var vpCmd tea.Cmd
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		return m, vpCmd
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m.sendChatMessage(input)
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m *ConsoleUI) currentBrief() brief.Brief {
	if m.snapshot == nil {
		return brief.Brief{}
	}
	return m.snapshot.Brief
}

func (m *ConsoleUI) openBriefForm(values brief.Brief) {
	m.showBriefForm = true
	m.showOutline = false
	m.briefInputs = newBriefInputs(values)
	m.briefFocus = 0
	m.briefProblems = nil
	m.textarea.Blur()
}

func (m ConsoleUI) updateBriefForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.submitting {
		if key.Type == tea.KeyCtrlC {
			m.showQuitModal = true
		}
		return m, nil
	}

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.showQuitModal = true
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		m.focusBriefField(m.briefFocus + 1)
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.focusBriefField(m.briefFocus - 1)
		return m, nil
	case tea.KeyEnter:
		if m.briefFocus < len(m.briefInputs)-1 {
			m.focusBriefField(m.briefFocus + 1)
			return m, nil
		}
		m.submitting = true
		return m, m.submitBrief(briefFromInputs(m.briefInputs))
	}

	var cmd tea.Cmd
	m.briefInputs[m.briefFocus], cmd = m.briefInputs[m.briefFocus].Update(msg)
	return m, cmd
}

func (m *ConsoleUI) focusBriefField(i int) {
	n := len(m.briefInputs)
	i = (i%n + n) % n
	m.briefInputs[m.briefFocus].Blur()
	m.briefFocus = i
	m.briefInputs[i].Focus()
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	m.notice = ""

	switch cmd {
	case "/help":
		m.notice = titleStyle.Render("Help:") + `
• /complete [stage] - Save the current step (or re-save an earlier one)
• /stage - Show the current step's instructions
• /outline - Show your story outline
• /copy - Copy the outline to the clipboard
• /modify - Edit the Key Pieces form
• /reset - Clear history and start over
• Ctrl+C - Quit
`
	case "/complete":
		stage := ""
		if len(fields) > 1 {
			stage = fields[1]
		}
		return m, m.completeStage(stage)
	case "/stage":
		return m, m.activateStage()
	case "/outline":
		return m, m.fetchOutline()
	case "/copy":
		return m, m.copyOutline()
	case "/modify":
		m.stage = nil
		return m, m.modifyBrief()
	case "/reset":
		m.stage = nil
		m.openBriefForm(brief.Brief{})
		return m, m.resetSession()
	case "/quit":
		m.showQuitModal = true
	default:
		m.notice = errorStyle.Render(fmt.Sprintf("Unknown command %s. Type /help for a list.", cmd))
	}

	m.refreshContent()
	return m, nil
}

func (m ConsoleUI) sendChatMessage(message string) (tea.Model, tea.Cmd) {
	m.loading = true
	m.progressTick = 0
	m.err = nil
	m.notice = ""
	if m.snapshot != nil {
		m.snapshot.Transcript = append(m.snapshot.Transcript, chat.ChatMessage{Role: chat.ChatRoleUser, Content: message})
	}

	ch := make(chan tea.Msg, 16)
	go func() {
		defer close(ch)
		err := m.streaming.streamChat(context.Background(), message, func(ev SSEEvent) {
			switch ev.Type {
			case string(events.EventTypeChatChunk):
				var chunk handlers.ChunkEvent
				if err := json.Unmarshal([]byte(ev.Data), &chunk); err == nil {
					ch <- chatChunkMsg{content: chunk.Content}
				}
			case string(events.EventTypeChatDone):
				var resp chat.ChatResponse
				if err := json.Unmarshal([]byte(ev.Data), &resp); err == nil {
					ch <- chatDoneMsg{response: resp}
				}
			}
		})
		if err != nil {
			ch <- chatErrMsg{err: err}
		}
	}()
	m.stream = ch

	m.refreshContent()
	return m, tea.Batch(waitForStream(ch), progressTick())
}

func waitForStream(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return msg
	}
}

func (m ConsoleUI) loadSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := m.api.getSession(ctx)
		return sessionMsg{snap, err}
	}
}

func (m ConsoleUI) submitBrief(b brief.Brief) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := m.api.submitBrief(ctx, b)
		return briefSubmittedMsg{snap, err}
	}
}

func (m ConsoleUI) modifyBrief() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := m.api.modifyBrief(ctx)
		return sessionMsg{snap, err}
	}
}

func (m ConsoleUI) resetSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := m.api.resetSession(ctx)
		return sessionMsg{snap, err}
	}
}

func (m ConsoleUI) activateStage() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		view, err := m.api.activateStage(ctx)
		return stageMsg{view, err}
	}
}

func (m ConsoleUI) completeStage(stage string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		result, err := m.api.completeStage(ctx, stage)
		return completionMsg{result, err}
	}
}

func (m ConsoleUI) fetchOutline() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		md, err := m.api.getOutline(ctx)
		return outlineMsg{md, err}
	}
}

func (m ConsoleUI) copyOutline() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		md, err := m.api.getOutline(ctx)
		if err != nil {
			return copiedMsg{err}
		}
		return copiedMsg{clipboardWriteAll(md)}
	}
}

// refreshContent rebuilds both panels for the current viewport width.
func (m *ConsoleUI) refreshContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding
	if chatWidth < 20 {
		chatWidth = 20
	}

	if m.showOutline {
		m.chatViewport.SetContent(renderOutline(m.outline, chatWidth, "auto") +
			"\n" + promptStyle.Render("Press Esc to return to the conversation."))
		m.chatViewport.GotoTop()
		m.metaViewport.SetContent(m.writeMetadata())
		return
	}

	m.chatViewport.SetContent(m.writeChatContent(chatWidth))
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(m.writeMetadata())
}

func (m ConsoleUI) writeChatContent(width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("STORY COACH") + "\n\n")

	if m.stage != nil {
		content.WriteString(titleStyle.Render(m.stage.Title) + "\n")
		content.WriteString(wordwrap.String(m.stage.Prompt, width) + "\n\n")
	}
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(width-6, 1))) + "\n\n")

	if m.snapshot != nil {
		for _, msg := range m.snapshot.Transcript {
			switch msg.Role {
			case chat.ChatRoleAgent:
				content.WriteString(formatCoachResponse(msg.Content, width) + "\n\n")
			case chat.ChatRoleUser:
				content.WriteString(userStyle.Render("You: ") + wordwrap.String(msg.Content, width-6) + "\n\n")
			}
		}
	}

	if m.loading {
		if m.pendingText != "" {
			content.WriteString(formatCoachResponse(m.pendingText, width) + "\n\n")
		} else {
			content.WriteString(m.renderProgressBar() + "\n\n")
		}
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.notice != "" {
		content.WriteString(m.notice + "\n\n")
	}
	content.WriteString(promptStyle.Render(prompts.Footer))
	return content.String()
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("OUTLINE") + "\n\n")

	if m.snapshot == nil || m.snapshot.Workflow == nil {
		content.WriteString(loadingStyle.Render("Loading...") + "\n")
		return content.String()
	}
	wf := m.snapshot.Workflow

	content.WriteString("Steps:\n")
	for _, s := range state.Stages {
		marker := "·"
		switch {
		case wf.Record(s) != nil && wf.Record(s).Completed:
			marker = "✓"
		case s == wf.ActiveStage:
			marker = "▶"
		}
		content.WriteString(fmt.Sprintf("%s %s\n", marker, s.Title()))
	}
	content.WriteString("\n")

	if wf.Feedback.Message != "" {
		content.WriteString(renderFeedback(wf.Feedback) + "\n\n")
	}

	content.WriteString("Key Pieces:\n")
	for _, f := range brief.Fields {
		v := m.snapshot.Brief.Value(f)
		if v == "" {
			v = "(empty)"
		}
		content.WriteString(fmt.Sprintf("• %s: %s\n", f, v))
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /complete: Save step\n")
	content.WriteString("• /outline: Outline\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func renderFeedback(fb state.Feedback) string {
	switch fb.Kind {
	case state.FeedbackSuccess:
		return successStyle.Render(fb.Message)
	case state.FeedbackError:
		return errorStyle.Render(fb.Message)
	default:
		return loadingStyle.Render(fb.Message)
	}
}

// formatCoachResponse prefixes and wraps an assistant turn.
func formatCoachResponse(response string, width int) string {
	if strings.TrimSpace(response) == "" {
		response = prompts.EmptyReplyText
	}
	prefix := AgentName + ": "
	wrapped := wordwrap.String(response, max(width-len(prefix), 10))
	return coachStyle.Render(prefix) + wrapped
}

// renderOutline renders markdown for the terminal. It falls back to the raw
// text if glamour cannot render it.
func renderOutline(markdown string, width int, style string) string {
	var opt glamour.TermRendererOption
	if style == "auto" {
		opt = glamour.WithAutoStyle()
	} else {
		opt = glamour.WithStylePath(style)
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(width))
	if err != nil {
		return wordwrap.String(markdown, width)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return wordwrap.String(markdown, width)
	}
	return out
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.showBriefForm {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Story Coach?"))
	content.WriteString("\n\n")
	content.WriteString("Your outline stays on the server until it is reset.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderBriefForm() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Key Pieces"))
	content.WriteString("\n\n")

	for i, f := range brief.Fields {
		content.WriteString(fieldLabelStyle.Render(string(f)))
		content.WriteString("\n")
		content.WriteString(m.briefInputs[i].View())
		content.WriteString("\n\n")
	}

	switch {
	case m.submitting:
		content.WriteString(loadingStyle.Render("Saving..."))
	case len(m.briefProblems) > 0:
		for _, p := range m.briefProblems {
			content.WriteString(errorStyle.Render(p) + "\n")
		}
	case m.snapshot != nil && m.snapshot.Workflow != nil && m.snapshot.Workflow.Feedback.Message != "":
		content.WriteString(renderFeedback(m.snapshot.Workflow.Feedback))
	}
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Tab/↑/↓ to move, Enter on the last field to submit, Ctrl+C to exit"))

	modal := modalStyle.Width(64).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showBriefForm {
		return m.renderBriefForm()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"", // Add empty line for spacing
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
