package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fazzatti/cacti/internal/model"
	"github.com/fazzatti/cacti/internal/ui"
)

func printSessionJSON(sess *model.Session) {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// renderPhase colors a phase by outcome: settled green, unwound red,
// everything in flight yellow.
func renderPhase(phase model.Phase) string {
	switch phase {
	case model.PhaseCommitted:
		return ui.RenderGood(phase.String())
	case model.PhaseRollingBack, model.PhaseRolledBack:
		return ui.RenderBad(phase.String())
	default:
		return ui.RenderWarn(phase.String())
	}
}

func printSessionTable(sess *model.Session) {
	fmt.Printf("ID:           %s\n", sess.ID)
	fmt.Printf("Role:         %s\n", sess.Role)
	fmt.Printf("Phase:        %s\n", renderPhase(sess.Phase))
	fmt.Printf("Source:       %s\n", sess.SourceLedgerAssetID)
	fmt.Printf("Recipient:    %s\n", sess.RecipientLedgerAssetID)
	fmt.Printf("Step:         %d\n", sess.Step)
	if sess.CounterpartyAddr != "" {
		fmt.Printf("Counterparty: %s\n", sess.CounterpartyAddr)
	}
	if sess.LockEvidenceClaim != "" {
		fmt.Printf("Lock Claim:   %s\n", sess.LockEvidenceClaim)
	}
	if sess.CommitFinalClaim != "" {
		fmt.Printf("Commit Claim: %s\n", sess.CommitFinalClaim)
	}
	if len(sess.RollbackActionsPerformed) > 0 {
		actions := make([]string, len(sess.RollbackActionsPerformed))
		for i, a := range sess.RollbackActionsPerformed {
			actions[i] = a.String()
		}
		fmt.Printf("Rollback:     %s\n", strings.Join(actions, ", "))
	}
	if !sess.CreatedAt.IsZero() {
		fmt.Printf("Created At:   %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if !sess.UpdatedAt.IsZero() {
		fmt.Printf("Updated At:   %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func printSessionListJSON(sessions []*model.Session) {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printSessionListTable(sessions []*model.Session) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tPHASE\tSOURCE\tRECIPIENT\tSTEP")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			s.ID,
			s.Role,
			s.Phase,
			s.SourceLedgerAssetID,
			s.RecipientLedgerAssetID,
			s.Step,
		)
	}
	w.Flush()
	fmt.Printf("\n%d sessions\n", len(sessions))
}

func printAuditJSON(records []*model.AuditRecord) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printAuditTable(records []*model.AuditRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTYPE\tOPERATION\tTIMESTAMP")
	for i, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			i+1,
			r.Type,
			r.Operation,
			r.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()
	fmt.Printf("\n%d records\n", len(records))
}
