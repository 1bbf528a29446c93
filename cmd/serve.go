package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/engine"
	"github.com/classmark/classmark/internal/extract"
	"github.com/classmark/classmark/internal/gallery"
	"github.com/classmark/classmark/internal/ledger"
	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance server",
	Long: `Start the Classmark web server.
The server loads the face gallery, connects to the embedding service and
exposes the teacher and student APIs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing teacher session cookies")
	serveCmd.Flags().String("public-url", "", "Base URL used in join links and QR codes (defaults to the request host)")
}

// resolveServeHostPort resolves port, host and secrets from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string, string, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	sessionSecret := mustGetString(cmd, "session-secret")
	publicURL := mustGetString(cmd, "public-url")

	if sessionSecret == "" {
		sessionSecret = os.Getenv("WEB_SESSION_SECRET")
	}
	if publicURL == "" {
		publicURL = os.Getenv("WEB_PUBLIC_URL")
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host, sessionSecret, publicURL
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	fmt.Printf("Loading face gallery...\n")
	g, err := gallery.Load(ctx, be.encodings, cfg.Embedding.Dim)
	if err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}
	if g.Size() == 0 {
		return fmt.Errorf("the face gallery is empty; enroll students with `classmark encode` first")
	}
	fmt.Printf("Gallery loaded: %d encodings, %d students, dim %d\n", g.Size(), g.Students(), g.Dim())

	if g.Size() >= cfg.Matching.IndexMin {
		if err := g.BuildIndex(); err != nil {
			fmt.Printf("Warning: failed to build gallery index: %v\n", err)
			fmt.Printf("Matching will scan the full gallery (slower)\n")
		} else {
			fmt.Printf("Gallery HNSW index built\n")
		}
	}

	extractor := extract.NewClient(cfg.Embedding.URL, cfg.Embedding.Model)

	sessions := session.NewStore(be.sessions, cfg.Session.TTL)
	marks := ledger.New(be.marks)
	eng := engine.New(sessions, g, marks, extractor, cfg.MatchThreshold())

	port, host, sessionSecret, publicURL := resolveServeHostPort(cmd)
	server := web.NewServer(eng, be.teachers, host, port, sessionSecret, publicURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Classmark on http://%s:%d (threshold %.2f)\n", host, port, cfg.MatchThreshold())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
