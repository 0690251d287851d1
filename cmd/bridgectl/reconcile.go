package main

import (
	"context"
	"fmt"
	"strings"

	"bridgeus/internal/app"
	"bridgeus/internal/services"

	"github.com/spf13/cobra"
)

var (
	reconcileTask    string
	reconcileCompany string
	reconcileApp     string
)

func init() {
	reconcileCmd.Flags().StringVar(&reconcileTask, "task", "", "Only recount the applicants of this task")
	reconcileCmd.Flags().StringVar(&reconcileCompany, "company", "", "Only recount the published tasks of this company")
	reconcileCmd.Flags().StringVar(&reconcileApp, "application", "", "Recreate the chat room of this approved application")
	reconcileCmd.MarkFlagsMutuallyExclusive("task", "company", "application")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute applicantCount and publishedTaskCount from source documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			reconciler := a.Services.ReconcileService

			switch {
			case reconcileTask != "":
				result, err := reconciler.ReconcileTask(ctx, reconcileTask)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), result, func() string { return formatResult(result) + "\n" })
			case reconcileCompany != "":
				result, err := reconciler.ReconcileCompany(ctx, reconcileCompany)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), result, func() string { return formatResult(result) + "\n" })
			}

			report, err := reconciler.ReconcileAll(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), report, func() string { return formatReport(report) })
		})
	},
}

func formatResult(r *services.ReconcileResult) string {
	state := "ok"
	if r.Changed {
		state = "repaired"
	}
	return fmt.Sprintf("%-8s %-28s %-20s %4d -> %-4d %s", r.Kind, r.ID, r.Field, r.Before, r.After, state)
}

func formatReport(report *services.ReconcileReport) string {
	var b strings.Builder
	for _, r := range report.Tasks {
		if r.Changed || verbose {
			b.WriteString(formatResult(r) + "\n")
		}
	}
	for _, r := range report.Companies {
		if r.Changed || verbose {
			b.WriteString(formatResult(r) + "\n")
		}
	}
	fmt.Fprintf(&b, "checked %d tasks and %d companies, repaired %d in %s\n",
		len(report.Tasks), len(report.Companies), report.Repaired, report.Duration)
	return b.String()
}
