package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "classmark",
	Short: "Face-recognition attendance for classrooms",
	Long: `Classmark marks classroom attendance from camera frames. A teacher opens
a short-lived session for a subject, students open the session link and
point the camera at themselves, and the first frame that matches an
enrolled face marks them present - at most once per subject per day.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
