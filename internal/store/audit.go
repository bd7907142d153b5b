package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cashbridge/advance-engine/internal/advance"
)

// AppendNodeLog writes one node log and its rule logs in a single
// transaction, keyed by run id and traversal sequence.
func (s *Store) AppendNodeLog(ctx context.Context, runID string, rec advance.NodeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	response, err := marshalJSON(rec.Log.ApprovalResponse)
	if err != nil {
		return fmt.Errorf("encode approval response: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO node_logs
		   (run_id, seq, node_name, success, success_node_name, is_ml, is_experimental, approval_response)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Seq, rec.Log.NodeName, boolInt(rec.Log.Success), rec.Log.SuccessNodeName,
		boolInt(rec.Log.IsMl), boolInt(rec.Log.IsExperimental), response)
	if err != nil {
		return fmt.Errorf("insert node log: %w", err)
	}

	for i, rl := range rec.Rules {
		data, err := marshalJSON(rl.Data)
		if err != nil {
			return fmt.Errorf("encode rule data: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rule_logs
			   (run_id, node_seq, seq, rule_name, node_name, success, error, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, rec.Seq, i, rl.RuleName, rl.NodeName, boolInt(rl.Success), rl.Error, data)
		if err != nil {
			return fmt.Errorf("insert rule log: %w", err)
		}
	}

	return tx.Commit()
}

// InsertRun writes the run summary row.
func (s *Store) InsertRun(ctx context.Context, run *advance.ApprovalRun) error {
	amounts, err := json.Marshal(run.ApprovedAmounts)
	if err != nil {
		return fmt.Errorf("encode amounts: %w", err)
	}

	var payback sql.NullString
	if run.DefaultPaybackDate != nil {
		payback = sql.NullString{String: run.DefaultPaybackDate.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approval_runs
		   (id, user_id, bank_account_id, recurring_transaction_id, approved, approved_amounts, initiator, created, default_payback_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, run.BankAccountID, nullable(run.RecurringTransactionID),
		boolInt(run.Approved), string(amounts), run.Initiator,
		run.Created.UTC().Format(time.RFC3339Nano), payback)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun reads one run summary by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*advance.ApprovalRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, bank_account_id, recurring_transaction_id, approved,
		        approved_amounts, initiator, created, default_payback_date
		   FROM approval_runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, advance.ErrRunNotFound
	}
	return run, err
}

// RunsByUser returns the most recent runs for a user, newest first.
func (s *Store) RunsByUser(ctx context.Context, userID string, limit int) ([]*advance.ApprovalRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, bank_account_id, recurring_transaction_id, approved,
		        approved_amounts, initiator, created, default_payback_date
		   FROM approval_runs WHERE user_id = ? ORDER BY created DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*advance.ApprovalRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ReadRunLogs returns the node records for a run in traversal order, each
// with its rule logs in declaration order.
func (s *Store) ReadRunLogs(ctx context.Context, runID string) ([]advance.NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, node_name, success, success_node_name, is_ml, is_experimental, approval_response
		   FROM node_logs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query node logs: %w", err)
	}
	defer rows.Close()

	var records []advance.NodeRecord
	for rows.Next() {
		var rec advance.NodeRecord
		var success, isMl, isExperimental int
		var response sql.NullString
		if err := rows.Scan(&rec.Seq, &rec.Log.NodeName, &success, &rec.Log.SuccessNodeName,
			&isMl, &isExperimental, &response); err != nil {
			return nil, fmt.Errorf("scan node log: %w", err)
		}
		rec.Log.Success = success != 0
		rec.Log.IsMl = isMl != 0
		rec.Log.IsExperimental = isExperimental != 0
		if rec.Log.ApprovalResponse, err = unmarshalJSON(response); err != nil {
			return nil, fmt.Errorf("decode approval response: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].Rules, err = s.readRuleLogs(ctx, runID, records[i].Seq); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) readRuleLogs(ctx context.Context, runID string, nodeSeq int) ([]advance.RuleExecutionLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule_name, node_name, success, error, data
		   FROM rule_logs WHERE run_id = ? AND node_seq = ? ORDER BY seq`, runID, nodeSeq)
	if err != nil {
		return nil, fmt.Errorf("query rule logs: %w", err)
	}
	defer rows.Close()

	var logs []advance.RuleExecutionLog
	for rows.Next() {
		var rl advance.RuleExecutionLog
		var success int
		var data sql.NullString
		if err := rows.Scan(&rl.RuleName, &rl.NodeName, &success, &rl.Error, &data); err != nil {
			return nil, fmt.Errorf("scan rule log: %w", err)
		}
		rl.Success = success != 0
		if rl.Data, err = unmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("decode rule data: %w", err)
		}
		logs = append(logs, rl)
	}
	return logs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*advance.ApprovalRun, error) {
	var run advance.ApprovalRun
	var recurring, payback sql.NullString
	var approved int
	var amounts, created string

	if err := row.Scan(&run.ID, &run.UserID, &run.BankAccountID, &recurring, &approved,
		&amounts, &run.Initiator, &created, &payback); err != nil {
		return nil, err
	}

	run.Approved = approved != 0
	run.RecurringTransactionID = recurring.String
	if err := json.Unmarshal([]byte(amounts), &run.ApprovedAmounts); err != nil {
		return nil, fmt.Errorf("decode amounts: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created: %w", err)
	}
	run.Created = ts

	if payback.Valid {
		pb, err := time.Parse(time.RFC3339Nano, payback.String)
		if err != nil {
			return nil, fmt.Errorf("parse payback date: %w", err)
		}
		run.DefaultPaybackDate = &pb
	}
	return &run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalJSON(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalJSON(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}
