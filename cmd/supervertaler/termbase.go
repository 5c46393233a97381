package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/supervertaler/supervertaler/internal/termbasestore"
)

func newTermbaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "termbase",
		Short: "Create, activate, and populate termbases",
	}
	cmd.AddCommand(newTermbaseListCmd())
	cmd.AddCommand(newTermbaseCreateCmd())
	cmd.AddCommand(newTermbaseActivateCmd())
	cmd.AddCommand(newTermbaseDeactivateCmd())
	cmd.AddCommand(newTermbaseAddTermCmd())
	return cmd
}

func openTermbaseStore(cmd *cobra.Command) (*termbasestore.Store, error) {
	profileDir, _ := cmd.Flags().GetString("profile-dir")
	if profileDir == "" {
		profileDir = defaultProfileDir()
	}
	return termbasestore.Open(dbPath(profileDir))
}

func newTermbaseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all termbases",
		RunE: func(cmd *cobra.Command, args []string) error {
			tb, err := openTermbaseStore(cmd)
			if err != nil {
				return err
			}
			defer tb.Close()

			termbases, err := tb.ListTermbases(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range termbases {
				fmt.Printf("%d\t%s\t%s->%s\tterms=%d\tglobal=%v\tproject=%v\n",
					t.ID, t.Name, t.SourceLang, t.TargetLang, t.TermCount, t.IsGlobal, t.IsProjectTermbase)
			}
			return nil
		},
	}
}

func newTermbaseCreateCmd() *cobra.Command {
	var sourceLang, targetLang, projectID string
	var isGlobal, isProjectTermbase bool
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new termbase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tb, err := openTermbaseStore(cmd)
			if err != nil {
				return err
			}
			defer tb.Close()

			id, err := tb.CreateTermbase(cmd.Context(), args[0], sourceLang, targetLang, projectID, isGlobal, isProjectTermbase)
			if err != nil {
				return err
			}
			fmt.Printf("created termbase %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceLang, "source-lang", "", "source language code (empty inherits)")
	cmd.Flags().StringVar(&targetLang, "target-lang", "", "target language code (empty inherits)")
	cmd.Flags().StringVar(&projectID, "project-id", "", "owning project id, empty for a global termbase")
	cmd.Flags().BoolVar(&isGlobal, "global", false, "set the is_global flag (visibility to every project comes from an empty --project-id)")
	cmd.Flags().BoolVar(&isProjectTermbase, "project-termbase", false, "the single always-active termbase for --project-id")
	return cmd
}

func newTermbaseActivateCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "activate <termbase-id>",
		Short: "Activate a termbase for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid termbase id %q: %w", args[0], err)
			}
			tb, err := openTermbaseStore(cmd)
			if err != nil {
				return err
			}
			defer tb.Close()
			return tb.Activate(cmd.Context(), id, projectID)
		},
	}
	cmd.Flags().StringVar(&projectID, "project-id", "default", "project id to activate the termbase for")
	return cmd
}

func newTermbaseDeactivateCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "deactivate <termbase-id>",
		Short: "Deactivate a termbase for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid termbase id %q: %w", args[0], err)
			}
			tb, err := openTermbaseStore(cmd)
			if err != nil {
				return err
			}
			defer tb.Close()
			return tb.Deactivate(cmd.Context(), id, projectID)
		},
	}
	cmd.Flags().StringVar(&projectID, "project-id", "default", "project id to deactivate the termbase for")
	return cmd
}

func newTermbaseAddTermCmd() *cobra.Command {
	var termbaseID int64
	var sourceLang, targetLang, domain, notes string
	var forbidden bool
	cmd := &cobra.Command{
		Use:   "add-term <source-term> <target-term>",
		Short: "Add a term to a termbase",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if termbaseID == 0 {
				return fmt.Errorf("--termbase-id is required")
			}
			tb, err := openTermbaseStore(cmd)
			if err != nil {
				return err
			}
			defer tb.Close()

			id, err := tb.AddTerm(cmd.Context(), termbasestore.Term{
				TermbaseID: termbaseID,
				SourceTerm: args[0],
				TargetTerm: args[1],
				SourceLang: sourceLang,
				TargetLang: targetLang,
				Domain:     domain,
				Notes:      notes,
				Forbidden:  forbidden,
			})
			if err != nil {
				return err
			}
			fmt.Printf("added term %d\n", id)
			return nil
		},
	}
	cmd.Flags().Int64Var(&termbaseID, "termbase-id", 0, "termbase to add the term to")
	cmd.Flags().StringVar(&sourceLang, "source-lang", "", "source language code (empty inherits from the termbase)")
	cmd.Flags().StringVar(&targetLang, "target-lang", "", "target language code (empty inherits from the termbase)")
	cmd.Flags().StringVar(&domain, "domain", "", "subject-matter domain")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text usage notes")
	cmd.Flags().BoolVar(&forbidden, "forbidden", false, "mark the target term as forbidden/deprecated")
	return cmd
}
