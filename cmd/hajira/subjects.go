package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/hajira/internal/app"
	"github.com/ayusman/hajira/internal/store"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Manage the subject directory",
}

var subjectsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a subject",
	RunE:  runSubjectsAdd,
}

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered subjects",
	RunE:  runSubjectsList,
}

func init() {
	rootCmd.AddCommand(subjectsCmd)
	subjectsCmd.AddCommand(subjectsAddCmd, subjectsListCmd)

	f := subjectsAddCmd.Flags()
	f.String("id", "", "Register number (required)")
	f.String("name", "", "Display name (required)")
	f.String("department", "", "Department")
	f.String("year", "", "Year of study")
	f.String("email", "", "Email address")
	f.String("contact", "", "Contact number")
	f.String("photo", "", "Profile photo used when no samples are enrolled")
}

func runSubjectsAdd(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	sub := &store.Subject{}
	sub.ID, _ = f.GetString("id")
	sub.Name, _ = f.GetString("name")
	sub.Department, _ = f.GetString("department")
	sub.Year, _ = f.GetString("year")
	sub.Email, _ = f.GetString("email")
	sub.Contact, _ = f.GetString("contact")
	sub.PhotoPath, _ = f.GetString("photo")

	if sub.ID == "" || sub.Name == "" {
		return fmt.Errorf("%w: --id and --name", errMissingFlag)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Subjects().Create(context.Background(), sub); err != nil {
		return fmt.Errorf("add subject %s: %w", sub.ID, err)
	}
	fmt.Printf("Added %s (%s)\n", sub.Name, sub.ID)
	return nil
}

func runSubjectsList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	subjects, err := st.Subjects().List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tYEAR\tSAMPLES")
	for _, s := range subjects {
		samples, err := st.Samples().ListBySubject(ctx, s.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Department, s.Year, len(samples))
	}
	return w.Flush()
}
