package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

// transactionRequest is the JSON body for create and update. Amount is
// a JSON number; parsing goes through core.ParseAmount so floats never
// touch the balance arithmetic.
type transactionRequest struct {
	Amount      json.Number `json:"amount"`
	Kind        string      `json:"kind"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	OccurredAt  string      `json:"occurredAt"`
}

type accountRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeBadRequest(w, "Account name is required")
		return
	}

	account, err := s.engine.CreateAccount(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Account created",
		"account_id", account.ID,
		"name", account.Name)
	writeData(w, http.StatusCreated, "Account created successfully", account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.engine.GetAccount(r.Context(), r.PathValue("accountID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", account)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")

	in, err := parseTransactionRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.engine.Create(r.Context(), accountID, ledger.CreateInput{
		Amount:      in.amount,
		Kind:        in.kind,
		Description: in.description,
		Category:    in.category,
		OccurredAt:  in.occurredAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, "Transaction created successfully", map[string]any{
		"transaction": result.Transaction,
		"newBalance":  result.NewBalance,
	})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")
	txID := r.PathValue("txID")

	in, err := parseTransactionRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.engine.Update(r.Context(), accountID, txID, ledger.UpdateInput{
		Amount:      in.amount,
		Kind:        in.kind,
		Description: in.description,
		Category:    in.category,
		OccurredAt:  in.occurredAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, "Transaction updated successfully", map[string]any{
		"transaction": result.Transaction,
		"newBalance":  result.NewBalance,
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")
	txID := r.PathValue("txID")

	result, err := s.engine.Delete(r.Context(), accountID, txID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, "Transaction deleted successfully", map[string]any{
		"deletedTransaction": result.Transaction,
		"newBalance":         result.NewBalance,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.engine.Get(r.Context(), r.PathValue("accountID"), r.PathValue("txID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	page := parsePage(r.URL.Query())

	txs, total, err := s.engine.List(r.Context(), accountID, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, "", map[string]any{
		"transactions": txs,
		"pagination":   buildPagination(page, total),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	stats, err := s.engine.Stats(r.Context(), accountID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", stats)
}

type parsedTransaction struct {
	amount      core.Money
	kind        core.Kind
	description string
	category    string
	occurredAt  time.Time
}

func parseTransactionRequest(r *http.Request) (parsedTransaction, error) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		return parsedTransaction{}, fmt.Errorf("%w: malformed body", core.ErrInvalidAmount)
	}

	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		return parsedTransaction{}, err
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		return parsedTransaction{}, err
	}

	var occurredAt time.Time
	if req.OccurredAt != "" {
		occurredAt, err = parseDate(req.OccurredAt)
		if err != nil {
			return parsedTransaction{}, core.ErrInvalidDate
		}
	}

	return parsedTransaction{
		amount:      amount,
		kind:        kind,
		description: strings.TrimSpace(req.Description),
		category:    strings.TrimSpace(req.Category),
		occurredAt:  occurredAt,
	}, nil
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// A second document in the body is rejected too.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}
	return nil
}
