package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"wellness/wellness/controllers"
	"wellness/wellness/utils/color"
	"wellness/wellness/utils/types"

	"github.com/spf13/cobra"
)

var (
	userEmail    string
	userPassword string
	userName     string
	makeAdmin    bool
	confirmed    bool
	documentID   string
	userRef      string
	question     string
	pollInterval time.Duration
	pollAttempts int
)

var setupUserCmd = &cobra.Command{
	Use:   "setup-test-user",
	Short: "Create a confirmed user for manual testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var name *string
		if userName != "" {
			name = &userName
		}
		u, err := a.Auth.CreateUser(cmd.Context(), userEmail, userPassword, name, makeAdmin)
		if err != nil {
			return err
		}
		fmt.Println(color.Info("created user"), u.Email)
		fmt.Println("  id:    ", u.ID)
		fmt.Println("  groups:", u.Groups)
		return nil
	},
}

var cleanupUserCmd = &cobra.Command{
	Use:   "cleanup-user",
	Short: "Delete a user and all of their data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmed {
			return errors.New("refusing to delete without --yes")
		}
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Admin.DeleteUser(cmd.Context(), types.DeleteUserRequest{Email: userEmail, Confirm: true})
		if err != nil {
			return err
		}
		fmt.Println(color.Heading("deleted " + report.Email))
		for table, n := range report.Deleted {
			fmt.Printf("  %-14s %d\n", table, n)
		}
		fmt.Printf("  %-14s %d\n", "objects", report.S3ObjectsDeleted)
		for _, e := range report.Errors {
			fmt.Println(color.Warning("  " + e))
		}
		return nil
	},
}

var kbSyncCmd = &cobra.Command{
	Use:   "kb-sync",
	Short: "Reindex documents and recrawl web sources once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		// Close waits for the queued jobs.
		defer a.Close()
		a.Start(cmd.Context(), false)

		report, err := a.KB.Sync(cmd.Context())
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(report)
	},
}

var docStatusCmd = &cobra.Command{
	Use:   "doc-status",
	Short: "Poll a document until it is ready or failed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		uid, err := resolveUser(cmd.Context(), a, userRef)
		if err != nil {
			return err
		}
		st, err := a.Documents.PollStatus(cmd.Context(), uid, documentID, pollInterval, pollAttempts,
			func(st *types.DocumentStatus) {
				fmt.Printf("%s %3d%% %s\n", color.Status(st.Status), st.Progress, st.StatusMessage)
			})
		if errors.Is(err, controllers.ErrPollTimeout) {
			fmt.Println(color.Warning("still processing after last attempt"))
			return nil
		}
		if err != nil {
			return err
		}
		if st.ErrorMessage != "" {
			fmt.Println(color.Error(st.ErrorMessage))
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Run one knowledge base question as a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		uid, err := resolveUser(cmd.Context(), a, userRef)
		if err != nil {
			return err
		}
		start := time.Now()
		resp, err := a.Query.Query(cmd.Context(), uid, types.QueryRequest{Question: question})
		if err != nil {
			return err
		}
		fmt.Println(color.Answer(resp.Response))
		fmt.Println()
		switch {
		case resp.RAGUsed:
			fmt.Println(color.Info("source:"), *resp.Citation)
		case resp.FallbackUsed:
			fmt.Println(color.Warning("no matching documents, answered directly"))
		}
		fmt.Printf("session %s, %s\n", resp.SessionID, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	setupUserCmd.Flags().StringVar(&userEmail, "email", "", "user email")
	setupUserCmd.Flags().StringVar(&userPassword, "password", "", "user password")
	setupUserCmd.Flags().StringVar(&userName, "name", "", "full name")
	setupUserCmd.Flags().BoolVar(&makeAdmin, "admin", false, "add the user to the admins group")
	_ = setupUserCmd.MarkFlagRequired("email")
	_ = setupUserCmd.MarkFlagRequired("password")

	cleanupUserCmd.Flags().StringVar(&userEmail, "email", "", "user email")
	cleanupUserCmd.Flags().BoolVar(&confirmed, "yes", false, "confirm deletion")
	_ = cleanupUserCmd.MarkFlagRequired("email")

	docStatusCmd.Flags().StringVar(&documentID, "id", "", "document id")
	docStatusCmd.Flags().StringVar(&userRef, "user", "", "owner id or email")
	docStatusCmd.Flags().DurationVar(&pollInterval, "interval", 5*time.Second, "time between checks")
	docStatusCmd.Flags().IntVar(&pollAttempts, "attempts", 60, "checks before giving up")
	_ = docStatusCmd.MarkFlagRequired("id")
	_ = docStatusCmd.MarkFlagRequired("user")

	askCmd.Flags().StringVar(&userRef, "user", "", "user id or email")
	askCmd.Flags().StringVarP(&question, "question", "q", "", "question to ask")
	_ = askCmd.MarkFlagRequired("user")
	_ = askCmd.MarkFlagRequired("question")
}
