package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supervertaler/supervertaler/internal/orchestrator"
	"github.com/supervertaler/supervertaler/internal/tmstore"
)

func newTMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tm",
		Short: "Inspect and search the translation memory database",
	}
	cmd.AddCommand(newTMConcordanceCmd())
	cmd.AddCommand(newTMImportCmd())
	cmd.AddCommand(newTMClearCmd())
	return cmd
}

func newTMConcordanceCmd() *cobra.Command {
	var dbFile string
	cmd := &cobra.Command{
		Use:   "concordance <substring>",
		Short: "Search source and target text for a substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileDir, _ := cmd.Flags().GetString("profile-dir")
			if profileDir == "" {
				profileDir = defaultProfileDir()
			}
			path := dbFile
			if path == "" {
				path = dbPath(profileDir)
			}
			tm, err := tmstore.Open(path)
			if err != nil {
				return err
			}
			defer tm.Close()

			hits, err := tm.Concordance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("[%s] %s\t%s\n", h.TMID, h.SourceText, h.TargetText)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbFile, "tm", "", "path to the TM database (defaults to the profile database)")
	return cmd
}

func newTMImportCmd() *cobra.Command {
	var dbFile, tmID, sourceLang, targetLang string
	cmd := &cobra.Command{
		Use:   "import <tsv-file>",
		Short: "Import tab-separated source/target pairs into the TM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileDir, _ := cmd.Flags().GetString("profile-dir")
			if profileDir == "" {
				profileDir = defaultProfileDir()
			}
			path := dbFile
			if path == "" {
				path = dbPath(profileDir)
			}
			tm, err := tmstore.Open(path)
			if err != nil {
				return err
			}
			defer tm.Close()

			return importTMFile(cmd.Context(), tm, args[0], tmID, sourceLang, targetLang)
		},
	}
	cmd.Flags().StringVar(&dbFile, "tm", "", "path to the TM database (defaults to the profile database)")
	cmd.Flags().StringVar(&tmID, "tm-id", "default", "identifier recorded against each imported unit")
	cmd.Flags().StringVar(&sourceLang, "source-lang", "en", "source language code")
	cmd.Flags().StringVar(&targetLang, "target-lang", "nl", "target language code")
	return cmd
}

func importTMFile(ctx context.Context, tm *tmstore.Store, path, tmID, sourceLang, targetLang string) error {
	segs, _, _, err := loadSource(path, orchestrator.ModeProofread)
	if err != nil {
		return err
	}
	var imported int
	for _, seg := range segs {
		if seg.Target == "" {
			continue
		}
		if _, err := tm.AddUnit(ctx, tmstore.TranslationUnit{
			SourceText: seg.Source,
			TargetText: seg.Target,
			SourceLang: sourceLang,
			TargetLang: targetLang,
			TMID:       tmID,
		}); err != nil {
			return err
		}
		imported++
	}
	fmt.Printf("imported %d units\n", imported)
	return nil
}

func newTMClearCmd() *cobra.Command {
	var dbFile string
	cmd := &cobra.Command{
		Use:   "clear <tm-id>",
		Short: "Delete every unit belonging to a tm-id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileDir, _ := cmd.Flags().GetString("profile-dir")
			if profileDir == "" {
				profileDir = defaultProfileDir()
			}
			path := dbFile
			if path == "" {
				path = dbPath(profileDir)
			}
			tm, err := tmstore.Open(path)
			if err != nil {
				return err
			}
			defer tm.Close()
			return tm.ClearTM(cmd.Context(), args[0])
		},
	}
	cmd.Flags().StringVar(&dbFile, "tm", "", "path to the TM database (defaults to the profile database)")
	return cmd
}
