package cmd

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/storage"
)

var teachersCmd = &cobra.Command{
	Use:   "teachers",
	Short: "Manage teacher accounts",
}

var teachersAddCmd = &cobra.Command{
	Use:   "add <username> <password>",
	Short: "Create or update a teacher account",
	Args:  cobra.ExactArgs(2),
	RunE:  runTeachersAdd,
}

func init() {
	rootCmd.AddCommand(teachersCmd)
	teachersCmd.AddCommand(teachersAddCmd)

	teachersAddCmd.Flags().String("name", "", "Display name (defaults to the username)")
}

func runTeachersAdd(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	username, password := args[0], args[1]
	name := mustGetString(cmd, "name")
	if name == "" {
		name = username
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	t := storage.Teacher{
		Username:     username,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := be.teachers.SaveTeacher(ctx, t); err != nil {
		return fmt.Errorf("failed to save teacher: %w", err)
	}

	fmt.Printf("Teacher %s saved\n", username)
	return nil
}
