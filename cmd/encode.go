package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/extract"
	"github.com/classmark/classmark/internal/gallery"
	"github.com/classmark/classmark/internal/storage"
	"github.com/classmark/classmark/internal/storage/mariadb"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <directory>",
	Short: "Enroll student faces from a directory of portraits",
	Long: `Encode computes face embeddings for every image in a directory and stores
them as the recognition gallery. The file name (without extension) is the
student id: photos/jan_novak.jpg enrolls student "jan_novak". A photo must
contain exactly one face; photos with zero or several faces are skipped.

With --roster-dsn (or ROSTER_DSN), display names are pulled from the school
information system; otherwise the name is derived from the student id.`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().String("roster-dsn", "", "MariaDB DSN of the school roster database")
	encodeCmd.Flags().Bool("replace", false, "Re-encode students that already have an encoding")
}

// imageExtensions are the portrait file types encode picks up.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// maxPortraitSize bounds the longer edge of portraits sent to the embedding
// service. Enrollment photos tend to be full-resolution camera files.
const maxPortraitSize = 1280

func runEncode(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()
	dir := args[0]

	rosterDSN := mustGetString(cmd, "roster-dsn")
	if rosterDSN == "" {
		rosterDSN = cfg.Roster.DSN
	}
	replace := mustGetBool(cmd, "replace")

	files, err := listPortraits(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	enrolled, err := enrolledStudents(ctx, be.encodings)
	if err != nil {
		return fmt.Errorf("failed to read existing encodings: %w", err)
	}

	names, err := loadRoster(ctx, rosterDSN)
	if err != nil {
		return err
	}

	extractor := extract.NewClient(cfg.Embedding.URL, cfg.Embedding.Model)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Encoding faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
	)

	var saved, replaced, skipped int
	// Students already refreshed in this run; a second photo for the same
	// student must not wipe the encoding the first one just saved.
	refreshed := make(map[string]bool)
	for _, file := range files {
		bar.Add(1)

		studentID := gallery.NormalizeStudentID(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
		if !replace && enrolled[studentID] {
			skipped++
			continue
		}

		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Printf("\nWarning: could not read %s: %v\n", file, err)
			skipped++
			continue
		}
		prepared, err := extract.PrepareFrame(data, maxPortraitSize)
		if err != nil {
			fmt.Printf("\nWarning: could not decode %s: %v\n", file, err)
			skipped++
			continue
		}

		detections, err := extractor.Extract(ctx, prepared)
		if err != nil {
			return fmt.Errorf("embedding service failed on %s: %w", file, err)
		}
		if len(detections) != 1 {
			fmt.Printf("\nWarning: %s has %d faces, expected exactly 1; skipping\n", file, len(detections))
			skipped++
			continue
		}

		name := studentID
		if r, ok := names[studentID]; ok {
			name = r.Name
		}

		// Replacement drops the superseded encodings first; otherwise the
		// stale vector would stay in the gallery and keep matching.
		if replace && enrolled[studentID] && !refreshed[studentID] {
			if err := be.encodings.DeleteEncodings(ctx, studentID); err != nil {
				return fmt.Errorf("failed to drop old encodings for %s: %w", studentID, err)
			}
			replaced++
		}

		enc := storage.Encoding{
			StudentID: studentID,
			Name:      name,
			Vector:    detections[0].Embedding,
			Dim:       len(detections[0].Embedding),
			CreatedAt: time.Now(),
		}
		if err := be.encodings.SaveEncoding(ctx, enc); err != nil {
			return fmt.Errorf("failed to save encoding for %s: %w", studentID, err)
		}
		enrolled[studentID] = true
		refreshed[studentID] = true
		saved++
	}

	fmt.Printf("\nDone: %d encodings saved (%d replaced), %d photos skipped\n", saved, replaced, skipped)
	return nil
}

// listPortraits returns the image files directly inside dir, sorted by name.
func listPortraits(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// enrolledStudents returns the set of student ids that already have at least
// one encoding.
func enrolledStudents(ctx context.Context, repo storage.EncodingRepository) (map[string]bool, error) {
	encs, err := repo.LoadEncodings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(encs))
	for _, enc := range encs {
		out[enc.StudentID] = true
	}
	return out, nil
}

// loadRoster pulls display names from the school system when a DSN is given.
func loadRoster(ctx context.Context, dsn string) (map[string]mariadb.RosterStudent, error) {
	if dsn == "" {
		return nil, nil
	}
	pool, err := mariadb.NewPool(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to roster database: %w", err)
	}
	defer pool.Close()

	roster, err := pool.Roster(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	fmt.Printf("Roster loaded: %d students\n", len(roster))

	// Roster ids are normalized the same way file names are, so the two sides
	// meet regardless of diacritics or case.
	out := make(map[string]mariadb.RosterStudent, len(roster))
	for _, s := range roster {
		out[gallery.NormalizeStudentID(s.StudentID)] = s
	}
	return out, nil
}
