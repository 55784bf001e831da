// campusctl is a terminal client for the CampusConnect lost & found board.
// It drives the reconciliation layer against a running server.
package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/campusconnect/campusconnect/internal/client"
	"github.com/campusconnect/campusconnect/internal/reconcile"
	"github.com/campusconnect/campusconnect/internal/session"
)

var (
	apiURL     string
	user       string
	debug      bool
	timeout    time.Duration
	queueFails bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "campusctl",
	Short: "Lost & found client for CampusConnect",
	Long: `campusctl lists, reports, claims and deletes found items on a
CampusConnect server and can follow the board live.

Configuration falls back to the environment (a .env file is loaded if present):
  CAMPUS_API_URL  API root, e.g. http://localhost:4000/api
  CAMPUS_USER     email used as the owner of new reports
  RABBITMQ_URL    enables push updates for "watch --push"`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API root (or set CAMPUS_API_URL)")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "u", "", "Acting user email (or set CAMPUS_USER)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&queueFails, "queue-failures", false, "Keep failed claims/deletes applied locally and retry them")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func resolvedAPI() string {
	if apiURL != "" {
		return apiURL
	}
	return getEnv("CAMPUS_API_URL", "http://localhost:4000/api")
}

func resolvedUser() string {
	if user != "" {
		return user
	}
	return getEnv("CAMPUS_USER", "")
}

func newClient() *client.Client {
	return client.New(resolvedAPI(), client.WithTimeout(timeout))
}

func newReconciler(remote client.Remote) *reconcile.Reconciler {
	policy := reconcile.PolicyRestore
	if queueFails {
		policy = reconcile.PolicyQueue
	}
	return reconcile.New(remote,
		reconcile.WithIdentity(session.New(resolvedUser())),
		reconcile.WithPolicy(policy),
	)
}
