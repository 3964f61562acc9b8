// wellnessctl runs operator tasks against the same database, bucket and
// models as the API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wellness/wellness/app"
	"wellness/wellness/config"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/utils/color"
	"wellness/wellness/utils/logging"

	"github.com/spf13/cobra"
)

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "wellnessctl",
	Short: "Operate the family wellness backend",
	Long: `wellnessctl manages users, documents and the knowledge base of the
family wellness backend. It reads the same environment as the server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.Disable()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(setupUserCmd, cleanupUserCmd, kbSyncCmd, docStatusCmd, askCmd)
}

func main() {
	logging.InitLogger()
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.Error("error: "+err.Error()))
		os.Exit(1)
	}
}

// connect builds the application for one command. Callers must Close it.
func connect(ctx context.Context) (*app.App, error) {
	cfg := config.LoadConfig()
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return app.New(initCtx, cfg)
}

// resolveUser accepts a user id or an email address.
func resolveUser(ctx context.Context, a *app.App, user string) (string, error) {
	if !strings.Contains(user, "@") {
		return user, nil
	}
	u, err := dao.NewUserDAO(a.DB.DB).GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(user)))
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", fmt.Errorf("no user with email %s", user)
	}
	return u.ID, nil
}
