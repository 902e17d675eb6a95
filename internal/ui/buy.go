package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/amount"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	tea "github.com/charmbracelet/bubbletea"
)

// BuyStatusMsg carries one orchestrator status into the model.
type BuyStatusMsg sale.Status

// BuyDoneMsg ends the purchase view with Submit's result.
type BuyDoneMsg struct {
	Record *sale.TransactionRecord
	Err    error
}

// BuyModel is the Bubble Tea model shown while a purchase runs. It renders
// the status stream and quits once the attempt returns.
type BuyModel struct {
	Intent        sale.Intent
	TokenSymbol   string
	PaymentSymbol string
	ExplorerTxURL func(hash string) string

	Status   sale.Status
	Steps    []sale.State
	Frame    int
	Done     bool
	Result   BuyDoneMsg
	Quitting bool
}

// NewBuyModel prepares the view for intent.
func NewBuyModel(intent sale.Intent, tokenSymbol, paymentSymbol string) BuyModel {
	return BuyModel{Intent: intent, TokenSymbol: tokenSymbol, PaymentSymbol: paymentSymbol}
}

type buyTickMsg struct{}

func buySpinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return buyTickMsg{}
	})
}

func (m BuyModel) Init() tea.Cmd { return buySpinTick() }

func (m BuyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			// The attempt keeps running in the wallet; we only stop watching.
			m.Quitting = true
			return m, tea.Quit
		case "q", "esc":
			if m.Done {
				return m, tea.Quit
			}
		}

	case buyTickMsg:
		if m.Done {
			return m, nil
		}
		m.Frame = (m.Frame + 1) % len(spinnerFrames)
		return m, buySpinTick()

	case BuyStatusMsg:
		st := sale.Status(msg)
		if st.State != m.Status.State && st.State != sale.StateIdle {
			m.Steps = append(m.Steps, st.State)
		}
		m.Status = st

	case BuyDoneMsg:
		m.Done = true
		m.Result = msg
		return m, tea.Quit
	}
	return m, nil
}

func (m BuyModel) View() string {
	if m.Quitting {
		return ""
	}
	var sb strings.Builder

	title := fmt.Sprintf("Buying %s %s for %s %s",
		amount.Format(m.Intent.Tokens), m.TokenSymbol,
		amount.Format(m.Intent.Raw), m.PaymentSymbol)
	sb.WriteString(StyleTitle.Render(title) + "\n")

	for i, step := range m.Steps {
		current := i == len(m.Steps)-1 && !m.Done
		sb.WriteString(m.stepLine(step, current) + "\n")
	}

	if tx := m.Status.LastTx; tx != nil {
		line := fmt.Sprintf("  last tx   %s  %s", tx.Kind, Addr(tx.Hash.Hex()))
		if m.ExplorerTxURL != nil {
			if url := m.ExplorerTxURL(tx.Hash.Hex()); url != "" {
				line += "\n            " + Meta(url)
			}
		}
		sb.WriteString(line + "\n")
	}

	if m.Done {
		sb.WriteString("\n" + BuyOutcome(m.Result, m.Intent, m.TokenSymbol) + "\n")
	} else {
		sb.WriteString("\n" + Meta("confirm each step in your wallet · ctrl+c stops watching") + "\n")
	}
	return sb.String()
}

func (m BuyModel) stepLine(s sale.State, current bool) string {
	label := StepLabel(s)
	switch {
	case s == sale.StateFailed:
		return StyleError.Render("  ✗ " + label)
	case current:
		return StyleWarning.Render(fmt.Sprintf("  %s %s", spinnerFrames[m.Frame], label))
	default:
		return StyleSuccess.Render("  ✓ " + label)
	}
}

// StepLabel is the user-facing name of an orchestrator state.
func StepLabel(s sale.State) string {
	switch s {
	case sale.StateValidating:
		return "Checking amount against the sale"
	case sale.StateApproving:
		return "Approving payment token"
	case sale.StatePurchasing:
		return "Sending purchase"
	case sale.StateSettling:
		return "Waiting for confirmation"
	case sale.StateFailed:
		return "Purchase failed"
	default:
		return "Idle"
	}
}

// BuyOutcome renders the final line of an attempt.
func BuyOutcome(res BuyDoneMsg, intent sale.Intent, tokenSymbol string) string {
	if res.Err != nil {
		return Err(res.Err.Error())
	}
	if res.Record != nil && res.Record.Confirmed {
		return Success(fmt.Sprintf("Bought %s %s", amount.Format(intent.Tokens), tokenSymbol))
	}
	return Warn("Purchase did not complete")
}
