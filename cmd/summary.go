package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/ledger"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [student-id]",
	Short: "Print derived attendance percentages",
	Long: `Summary recomputes attendance from the full mark ledger. The class total
for a subject is the highest attendance count any student reached in it.
Without an argument every student is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	studentID := ""
	if len(args) == 1 {
		studentID = args[0]
	}

	summary, err := ledger.New(be.marks).SummaryFor(ctx, studentID)
	if err != nil {
		return fmt.Errorf("failed to compute summary: %w", err)
	}
	if len(summary) == 0 {
		fmt.Println("No attendance recorded")
		return nil
	}

	students := make([]string, 0, len(summary))
	for s := range summary {
		students = append(students, s)
	}
	sort.Strings(students)

	for _, student := range students {
		fmt.Printf("%s\n", student)
		subjects := make([]string, 0, len(summary[student]))
		for subject := range summary[student] {
			subjects = append(subjects, subject)
		}
		sort.Strings(subjects)
		for _, subject := range subjects {
			s := summary[student][subject]
			fmt.Printf("  %-20s %d/%d (%.1f%%)\n", subject, s.Attended, s.TotalClasses, s.Percentage)
		}
	}
	return nil
}
