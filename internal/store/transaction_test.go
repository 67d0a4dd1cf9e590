package store

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"demandflow/internal/models"
)

func TestTransactionStoreCRUD(t *testing.T) {
	db := testDB(t)
	client := testClient(t, db)
	s := NewTransactionStore(db)

	created, err := s.Create(&models.Transaction{
		ClientID:    &client.ID,
		Kind:        models.TransactionIncome,
		Description: "Mensalidade agosto",
		Amount:      2500,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != models.TransactionPending {
		t.Errorf("status: got %q, want pending", created.Status)
	}

	if err := s.MarkPaid(created.ID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	paid, _ := s.FindByID(created.ID)
	if paid.Status != models.TransactionPaid || paid.PaidAt == nil {
		t.Errorf("expected paid with timestamp, got %+v", paid)
	}

	if err := s.Delete(created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(created.ID); err != ErrNotFound {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestTransactionContractLink(t *testing.T) {
	db := testDB(t)
	client := testClient(t, db)
	cs := NewContractStore(db)
	ts := NewTransactionStore(db)

	contract, err := cs.Create(&models.Contract{
		ClientID:  client.ID,
		Title:     "Contrato social media",
		Value:     2500,
		StartDate: time.Now(),
	})
	if err != nil {
		t.Fatalf("create contract: %v", err)
	}
	if contract.Status != models.ContractDraft {
		t.Errorf("contract status: got %q, want draft", contract.Status)
	}

	tx, err := ts.Create(&models.Transaction{
		ClientID:    &client.ID,
		ContractID:  &contract.ID,
		Kind:        models.TransactionIncome,
		Description: "Primeira parcela",
		Amount:      2500,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	// Deleting the contract must null the link, not the transaction.
	if err := cs.Delete(contract.ID); err != nil {
		t.Fatalf("delete contract: %v", err)
	}
	got, err := ts.FindByID(tx.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got == nil {
		t.Fatal("transaction gone after contract delete")
	}
	if got.ContractID != nil {
		t.Error("expected contract link to be cleared")
	}
}

func TestTransactionMonthlySummaries(t *testing.T) {
	db := testDB(t)
	client := testClient(t, db)
	s := NewTransactionStore(db)

	income, err := s.Create(&models.Transaction{
		ClientID:    &client.ID,
		Kind:        models.TransactionIncome,
		Description: "Receita",
		Amount:      1000,
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	expense, err := s.Create(&models.Transaction{
		ClientID:    &client.ID,
		Kind:        models.TransactionExpense,
		Description: "Despesa",
		Amount:      400,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM transactions WHERE id IN ($1, $2)", income.ID, expense.ID)
	})

	summaries, err := s.MonthlySummaries(1)
	if err != nil {
		t.Fatalf("MonthlySummaries: %v", err)
	}
	if len(summaries) == 0 {
		t.Fatal("expected at least the current month")
	}

	current := summaries[len(summaries)-1]
	if current.Month != time.Now().Format("2006-01") {
		t.Errorf("month: got %q, want %q", current.Month, time.Now().Format("2006-01"))
	}
	if current.Balance != current.Income-current.Expense {
		t.Errorf("balance %v != income %v - expense %v", current.Balance, current.Income, current.Expense)
	}
}

func TestContractNotFound(t *testing.T) {
	db := testDB(t)
	s := NewContractStore(db)

	found, err := s.FindByID(uuid.New())
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found != nil {
		t.Error("expected nil for unknown contract")
	}
}
