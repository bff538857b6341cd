package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sgavilanez/planea-api/internal/models"
)

// LoanFSM wraps a loan with its lifecycle state machine. A loan only ever
// moves forward: active → paid_off, and paid_off is terminal.
type LoanFSM struct {
	loan *models.Loan
	fsm  *fsm.FSM
}

// NewLoanFSM creates a new loan state machine
func NewLoanFSM(loan *models.Loan) *LoanFSM {
	lfsm := &LoanFSM{
		loan: loan,
	}

	lfsm.fsm = fsm.NewFSM(
		loan.Status,
		fsm.Events{
			// active → paid_off (early payoff or final installment)
			{Name: "payoff", Src: []string{models.LoanStatusActive}, Dst: models.LoanStatusPaidOff},
		},
		fsm.Callbacks{},
	)

	return lfsm
}

// Payoff transitions the loan to its terminal paid_off state
func (l *LoanFSM) Payoff(ctx context.Context) error {
	if !l.loan.MayPayoff() && l.loan.Status != models.LoanStatusActive {
		return fmt.Errorf("loan cannot be paid off in current state: %s", l.loan.Status)
	}

	if err := l.fsm.Event(ctx, "payoff"); err != nil {
		return fmt.Errorf("failed to pay off loan: %w", err)
	}

	l.loan.Status = l.fsm.Current()
	return nil
}

// Current returns the current state
func (l *LoanFSM) Current() string {
	return l.fsm.Current()
}

// Can checks if a transition is possible
func (l *LoanFSM) Can(event string) bool {
	return l.fsm.Can(event)
}

// InstallmentFSM wraps one schedule row with its state machine.
type InstallmentFSM struct {
	row *models.LoanInstallment
	fsm *fsm.FSM
}

// NewInstallmentFSM creates a state machine for a schedule row
func NewInstallmentFSM(row *models.LoanInstallment) *InstallmentFSM {
	ifsm := &InstallmentFSM{
		row: row,
	}

	ifsm.fsm = fsm.NewFSM(
		row.Status,
		fsm.Events{
			// planned/partial → paid (full payment)
			{Name: "pay", Src: []string{models.InstallmentStatusPlanned, models.InstallmentStatusPartial}, Dst: models.InstallmentStatusPaid},

			// planned → partial (payment below the scheduled amount)
			{Name: "pay_partial", Src: []string{models.InstallmentStatusPlanned}, Dst: models.InstallmentStatusPartial},
		},
		fsm.Callbacks{},
	)

	return ifsm
}

// Pay marks the row fully paid
func (i *InstallmentFSM) Pay(ctx context.Context) error {
	if !i.row.MayPay() {
		return fmt.Errorf("installment cannot be paid in current state: %s", i.row.Status)
	}

	if err := i.fsm.Event(ctx, "pay"); err != nil {
		return fmt.Errorf("failed to pay installment: %w", err)
	}

	i.row.Status = i.fsm.Current()
	return nil
}

// PayPartial marks the row partially paid
func (i *InstallmentFSM) PayPartial(ctx context.Context) error {
	if err := i.fsm.Event(ctx, "pay_partial"); err != nil {
		return fmt.Errorf("failed to mark installment partial: %w", err)
	}

	i.row.Status = i.fsm.Current()
	return nil
}

// Current returns the current state
func (i *InstallmentFSM) Current() string {
	return i.fsm.Current()
}
