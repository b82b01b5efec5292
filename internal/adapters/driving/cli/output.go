package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// stateView is the printable form of an engine state.
type stateView struct {
	Address         string            `json:"address"`
	Owner           string            `json:"owner"`
	TokenA          string            `json:"token_a"`
	TokenB          string            `json:"token_b"`
	Armed           bool              `json:"armed"`
	Period          uint64            `json:"period"`
	TaskID          string            `json:"task_id,omitempty"`
	LastTriggerStep uint64            `json:"last_trigger_step"`
	Triggers        uint64            `json:"triggers"`
	Balances        map[string]string `json:"balances"`
}

func newStateView(s *domain.ArbitrageState) stateView {
	v := stateView{
		Address:         s.Address.String(),
		Owner:           s.Owner.String(),
		TokenA:          s.TokenA.String(),
		TokenB:          s.TokenB.String(),
		Armed:           s.Armed(),
		Period:          uint64(s.Period),
		TaskID:          s.TaskID.String(),
		LastTriggerStep: uint64(s.LastTriggerStep),
		Triggers:        s.Triggers,
		Balances:        make(map[string]string, len(s.Balances)),
	}
	for token, amount := range s.Balances {
		v.Balances[token.String()] = domain.FormatFixed(amount)
	}
	return v
}

// taskView is the printable form of a pending task.
type taskView struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Target      string `json:"target"`
	DueStep     uint64 `json:"due_step"`
	CreatedStep uint64 `json:"created_step"`
}

func newTaskView(t domain.Task) taskView {
	return taskView{
		ID:          t.ID.String(),
		Owner:       t.Owner.String(),
		Target:      t.Target.String(),
		DueStep:     uint64(t.DueStep),
		CreatedStep: uint64(t.CreatedStep),
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := sonnet.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printState(cmd *cobra.Command, s *domain.ArbitrageState) error {
	view := newStateView(s)
	if flagOutput == "json" {
		return printJSON(cmd, view)
	}

	cmd.Printf("Engine %s (owner %s)\n", view.Address, view.Owner)
	cmd.Printf("  Pair:     %s/%s\n", view.TokenA, view.TokenB)
	if view.Armed {
		cmd.Printf("  Status:   armed every %d steps, task %s\n", view.Period, view.TaskID)
	} else {
		cmd.Println("  Status:   idle")
	}
	cmd.Printf("  Triggers: %d (last at step %d)\n", view.Triggers, view.LastTriggerStep)
	cmd.Println("  Balances:")
	tokens := make([]string, 0, len(view.Balances))
	for token := range view.Balances {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	for _, token := range tokens {
		cmd.Printf("    %-6s %s\n", token, view.Balances[token])
	}
	return nil
}

func printTasks(cmd *cobra.Command, tasks []domain.Task) error {
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t))
	}
	if flagOutput == "json" {
		return printJSON(cmd, views)
	}

	if len(views) == 0 {
		cmd.Println("No pending tasks.")
		return nil
	}
	cmd.Printf("%-66s %-10s %-10s %s\n", "ID", "OWNER", "TARGET", "DUE")
	for _, v := range views {
		cmd.Printf("%-66s %-10s %-10s %d\n", v.ID, v.Owner, v.Target, v.DueStep)
	}
	return nil
}

func printHistory(cmd *cobra.Command, results []domain.TaskResult) error {
	type resultView struct {
		RunID   string `json:"run_id"`
		TaskID  string `json:"task_id"`
		Step    uint64 `json:"step"`
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	views := make([]resultView, 0, len(results))
	for _, r := range results {
		views = append(views, resultView{
			RunID:   r.RunID,
			TaskID:  r.TaskID.String(),
			Step:    uint64(r.Step),
			Success: r.Success,
			Error:   r.Error,
		})
	}
	if flagOutput == "json" {
		return printJSON(cmd, views)
	}

	if len(views) == 0 {
		cmd.Println("No firings recorded.")
		return nil
	}
	for _, v := range views {
		status := "ok"
		if !v.Success {
			status = "failed: " + v.Error
		}
		cmd.Printf("step %-8d %s  %s\n", v.Step, v.RunID, status)
	}
	return nil
}
