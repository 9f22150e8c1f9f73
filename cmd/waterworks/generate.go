package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/amanzav/waterworks/internal/auth"
	"github.com/amanzav/waterworks/internal/extract"
	"github.com/amanzav/waterworks/internal/letters"
	"github.com/amanzav/waterworks/internal/pdf"
	"github.com/amanzav/waterworks/internal/portal"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate cover letters for jobs in a WaterlooWorks folder",
	Long: "Generate logs into WaterlooWorks, walks every job in the given folder, " +
		"extracts each posting's description and writes one tailored cover letter PDF per job.",
	RunE: runGenerate,
}

var (
	generateFolder   string
	generateJobBoard string
	generateForce    bool
	generateDryRun   bool
)

func init() {
	generateCmd.Flags().StringVarP(&generateFolder, "folder", "f", "", "WaterlooWorks folder name (default from config)")
	generateCmd.Flags().StringVarP(&generateJobBoard, "job-board", "b", "", "Job board: 'full' or 'direct' (default from config)")
	generateCmd.Flags().BoolVar(&generateForce, "force", false, "Regenerate cover letters that already exist")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "List matching jobs without generating anything")

	rootCmd.AddCommand(generateCmd)
}

// minDescriptionLen guards against generating letters from postings whose
// description failed to extract.
const minDescriptionLen = 50

func runGenerate(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	folder := generateFolder
	if folder == "" {
		folder = cfg.Defaults.FolderName
	}
	boardName := generateJobBoard
	if boardName == "" {
		boardName = cfg.Defaults.JobBoard
	}
	board := portal.Board(strings.ToLower(boardName))
	if board != portal.BoardFullCycle && board != portal.BoardDirect {
		return fmt.Errorf("invalid job board %q (want 'full' or 'direct')", boardName)
	}

	if cfg.Profile.ResumeText == "" {
		log.Warn().Msg("profile.resume_text is empty, cover letters may be generic")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.New().String()
	log.Info().Str("run_id", runID).Str("folder", folder).Str("board", string(board)).
		Msg("starting generation run")

	authn := auth.New(auth.Credentials{
		Username: cfg.WaterlooWorks.Username,
		Password: cfg.WaterlooWorks.Password,
	}, auth.WithHeadless(cfg.Browser.Headless))

	sess, err := authn.Login(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	crawler := portal.NewCrawler(sess)

	if generateDryRun {
		fmt.Println("Dry run: jobs that would be processed")
		n, err := crawler.ForEachJob(ctx, folder, board, func(ref portal.JobReference) error {
			fmt.Printf("  %d. %s - %s\n", ref.Ordinal, ref.Company, ref.Title)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("\n%d jobs found in %q\n", n, folder)
		return nil
	}

	lettersDir, err := cfg.CoverLettersDir()
	if err != nil {
		return err
	}
	builder, err := pdf.NewBuilder(lettersDir, cfg.Profile.Signature)
	if err != nil {
		return err
	}
	provider, err := letters.NewProvider(ctx, cfg.LLM.Provider, cfg.LLM.Model, cfg.APIKey())
	if err != nil {
		return err
	}
	defer provider.Close()

	var genOpts []letters.GeneratorOption
	if cfg.CoverLetter.Prompt != "" {
		genOpts = append(genOpts, letters.WithTemplate(cfg.CoverLetter.Prompt))
	}
	generator := letters.NewGenerator(provider, cfg.Profile.ResumeText, cfg.Profile.AdditionalInfo, genOpts...)
	manager := letters.NewManager(generator, builder)
	extractor := extract.NewExtractor(sess)

	var generated, skipped, failed int
	total, err := crawler.ForEachJob(ctx, folder, board, func(ref portal.JobReference) error {
		fmt.Printf("[%d] %s - %s\n", ref.Ordinal, ref.Company, ref.Title)

		// Skip before extraction: no need to open the panel for a posting
		// whose artifact already exists.
		if !generateForce && manager.Exists(ref.Company, ref.Title) {
			fmt.Println("    already exists, skipping")
			skipped++
			return nil
		}

		rec := extractor.Extract(ctx, ref)
		if rec == nil {
			fmt.Println("    could not extract job details")
			failed++
			return nil
		}
		if len(rec.Description) < minDescriptionLen {
			fmt.Println("    description too short or missing, skipping")
			failed++
			return nil
		}

		created, genErr := manager.GenerateAndSave(ctx, ref.Company, ref.Title, rec.Description, generateForce)
		if genErr != nil {
			log.Warn().Err(genErr).Str("company", ref.Company).Str("title", ref.Title).
				Msg("cover letter generation failed")
			failed++
			return nil
		}
		if created {
			fmt.Println("    cover letter saved")
			generated++
		} else {
			skipped++
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Total jobs:  %d\n", total)
	fmt.Printf("Generated:   %d\n", generated)
	fmt.Printf("Skipped:     %d\n", skipped)
	fmt.Printf("Failed:      %d\n", failed)
	fmt.Printf("Cover letters saved to %s\n", lettersDir)
	return nil
}
