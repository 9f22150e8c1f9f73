package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amanzav/waterworks/internal/auth"
	"github.com/amanzav/waterworks/internal/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload generated cover letters to WaterlooWorks",
	Long: "Upload pushes every pending cover letter PDF through the portal's document " +
		"upload form, recording successes so reruns only upload new files.",
	RunE: runUpload,
}

var (
	uploadForce bool
	uploadList  bool
	uploadReset bool
	uploadStats bool
)

func init() {
	uploadCmd.Flags().BoolVar(&uploadForce, "force", false, "Re-upload all files, ignoring tracking")
	uploadCmd.Flags().BoolVar(&uploadList, "list", false, "List uploaded and pending files")
	uploadCmd.Flags().BoolVar(&uploadReset, "reset", false, "Clear upload tracking history")
	uploadCmd.Flags().BoolVar(&uploadStats, "stats", false, "Show upload statistics")

	rootCmd.AddCommand(uploadCmd)
}

func runUpload(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lettersDir, err := cfg.CoverLettersDir()
	if err != nil {
		return err
	}
	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}
	store, err := upload.NewStore(dataDir)
	if err != nil {
		return err
	}
	tracker := upload.NewTracker(store, lettersDir)

	// Tracking-only operations need no browser session.
	if uploadReset {
		if err := tracker.Reset(); err != nil {
			return err
		}
		fmt.Println("Upload tracking reset")
		return nil
	}
	if uploadStats || uploadList {
		if uploadStats {
			s := tracker.Stats()
			fmt.Println("Upload statistics")
			fmt.Printf("  Total PDFs: %d\n", s.TotalArtifacts)
			fmt.Printf("  Uploaded:   %d\n", s.UploadedCount)
			fmt.Printf("  Pending:    %d\n", s.PendingCount)
		}
		if uploadList {
			fmt.Println("Uploaded:")
			for _, name := range tracker.Uploaded() {
				fmt.Printf("  %s\n", name)
			}
			fmt.Println("Pending:")
			for _, name := range tracker.Pending() {
				fmt.Printf("  %s\n", name)
			}
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authn := auth.New(auth.Credentials{
		Username: cfg.WaterlooWorks.Username,
		Password: cfg.WaterlooWorks.Password,
	}, auth.WithHeadless(cfg.Browser.Headless))

	sess, err := authn.Login(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	stats, err := tracker.Sync(ctx, sess, uploadForce)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Total PDFs:  %d\n", stats.Total)
	fmt.Printf("Uploaded:    %d\n", stats.Uploaded)
	fmt.Printf("Skipped:     %d\n", stats.Skipped)
	fmt.Printf("Failed:      %d\n", stats.Failed)
	return nil
}
